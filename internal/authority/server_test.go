package authority

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/testutil"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	ids := testutil.NewSequenceIDs("profile")
	opts = append([]Option{
		WithBcryptCost(bcrypt.MinCost),
		WithClock(clock.Func(func() time.Time { return testNow })),
		WithIDs(ids.Generate),
	}, opts...)
	srv := New(testutil.LanternGraph(t), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeSnapshot(t *testing.T, raw []byte) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap
}

func decodeError(t *testing.T, raw []byte) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func createProfile(t *testing.T, ts *httptest.Server) session.Snapshot {
	t.Helper()
	status, raw := post(t, ts, api.PathProfile, api.ProfileRequest{
		TrainerName: "Ash", PIN: "1234", CreateIfMissing: true,
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	return decodeSnapshot(t, raw)
}

func submit(t *testing.T, ts *httptest.Server, kind story.Kind, req api.MinigameRequest) (int, []byte) {
	t.Helper()
	return post(t, ts, "/minigame/"+string(kind), req)
}

func TestStatus(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + api.PathStatus)
	require.NoError(t, err)
	var st api.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.True(t, st.Enabled)

	srv.SetEnabled(false)
	resp, err = http.Get(ts.URL + api.PathStatus)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.False(t, st.Enabled)

	status, raw := post(t, ts, api.PathProfile, api.ProfileRequest{TrainerName: "Ash", PIN: "1234", CreateIfMissing: true})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, api.CodeDisabled, decodeError(t, raw).Code)
}

func TestStory(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + api.PathStory)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	g, err := story.Decode(raw, story.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, g.Acts, 4)
	assert.Equal(t, []string{"compass_found", "compass_repaired"}, g.RequiredFlags[2])
}

func TestProfile_CreateAndResume(t *testing.T) {
	_, ts := newTestServer(t)

	created := createProfile(t, ts)
	assert.Equal(t, "profile-0001", created.Profile.ID)
	assert.Equal(t, "Ash", created.Profile.TrainerName)
	assert.Equal(t, 1, created.Session.CurrentAct)

	status, raw := post(t, ts, api.PathProfile, api.ProfileRequest{TrainerName: " ash ", PIN: "1234"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.Profile.ID, decodeSnapshot(t, raw).Profile.ID)
}

func TestProfile_Errors(t *testing.T) {
	_, ts := newTestServer(t)
	createProfile(t, ts)

	status, raw := post(t, ts, api.PathProfile, api.ProfileRequest{TrainerName: "Ash", PIN: "9999"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, api.CodeBadPIN, decodeError(t, raw).Code)

	status, _ = post(t, ts, api.PathProfile, api.ProfileRequest{TrainerName: "Ash", PIN: "9999", CreateIfMissing: true})
	assert.Equal(t, http.StatusUnauthorized, status, "an existing trainer is never recreated")

	status, raw = post(t, ts, api.PathProfile, api.ProfileRequest{TrainerName: "Misty", PIN: "1234"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, api.CodeUnknown, decodeError(t, raw).Code)

	status, _ = post(t, ts, api.PathProfile, api.ProfileRequest{TrainerName: "Misty", PIN: "12a4", CreateIfMissing: true})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSession_Credentials(t *testing.T) {
	_, ts := newTestServer(t)
	snap := createProfile(t, ts)

	status, _ := post(t, ts, api.PathSession, api.SessionRequest{ProfileID: snap.Profile.ID, PIN: "0000"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = post(t, ts, api.PathSession, api.SessionRequest{ProfileID: "nobody", PIN: "1234"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSession_AdvanceIsGated(t *testing.T) {
	srv, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, raw := post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State: &session.Update{CurrentAct: session.Int(2), LastScene: session.String("a2_intro")},
	})
	require.Equal(t, http.StatusConflict, status)
	e := decodeError(t, raw)
	assert.Equal(t, api.CodeMissingFlags, e.Code)
	assert.Equal(t, []string{"compass_found", "compass_repaired"}, e.Missing)

	stored, _ := srv.Session(id)
	assert.Equal(t, 1, stored.CurrentAct, "refused advance leaves state untouched")

	status, raw = submit(t, ts, story.KindArtifactCode, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a1_code", Code: " N0RTH "})
	require.Equal(t, http.StatusOK, status, string(raw))
	status, raw = submit(t, ts, story.KindMosaic, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a1_mosaic"})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State: &session.Update{CurrentAct: session.Int(2), LastScene: session.String("a2_intro")},
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	got := decodeSnapshot(t, raw)
	assert.Equal(t, 2, got.Session.CurrentAct)
	assert.Equal(t, "a2_intro", *got.Session.LastScene)
}

func TestSession_SkippingActsChecksEveryGate(t *testing.T) {
	srv, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	require.True(t, srv.Grant(id, session.Update{ProgressFlags: map[string]session.FlagRecord{
		"beacon_reached":  {"status": "validated"},
		"focus_completed": {"status": "completed"},
	}}))

	status, raw := post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State:     &session.Update{CurrentAct: session.Int(3)},
	})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, []string{"compass_found", "compass_repaired"}, decodeError(t, raw).Missing)

	status, _ = post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State:     &session.Update{CurrentAct: session.Int(7)},
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSession_RefusesClientWrittenFlags(t *testing.T) {
	srv, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, raw := post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State: &session.Update{
			CurrentAct: session.Int(2),
			ProgressFlags: map[string]session.FlagRecord{
				"compass_found":    {"status": "validated"},
				"compass_repaired": {"status": "completed"},
			},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, api.CodeServerOwned, decodeError(t, raw).Code)

	stored, _ := srv.Session(id)
	assert.Equal(t, 1, stored.CurrentAct)
	assert.Empty(t, stored.ProgressFlags)
}

func TestSession_FlagsAreImmutable(t *testing.T) {
	srv, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, _ := submit(t, ts, story.KindArtifactCode, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a1_code", Code: "N0RTH"})
	require.Equal(t, http.StatusOK, status)

	status, _ = post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State: &session.Update{ProgressFlags: map[string]session.FlagRecord{
			"compass_found": {"status": "validated", "code": "FORGED"},
		}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	stored, _ := srv.Session(id)
	assert.Equal(t, "N0RTH", stored.ProgressFlags["compass_found"]["code"])
	assert.Equal(t, testNow.Format(time.RFC3339Nano), stored.ProgressFlags["compass_found"]["validated_at"])
}

func TestSession_EndingIsTerminal(t *testing.T) {
	srv, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, raw := submit(t, ts, story.KindEndingChoice, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a4_ending", ChoiceID: "release"})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234",
		State:     &session.Update{EndingChoice: session.String("keep")},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, api.CodeServerOwned, decodeError(t, raw).Code)

	stored, _ := srv.Session(id)
	require.NotNil(t, stored.EndingChoice)
	assert.Equal(t, "release", *stored.EndingChoice)
}

func TestSession_GrantUnknownProfile(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.False(t, srv.Grant("nobody", session.Update{CurrentAct: session.Int(2)}))
}

func TestSession_Reset(t *testing.T) {
	_, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, _ := submit(t, ts, story.KindArtifactCode, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a1_code", Code: "N0RTH"})
	require.Equal(t, http.StatusOK, status)

	status, raw := post(t, ts, api.PathSession, api.SessionRequest{
		ProfileID: id, PIN: "1234", Reset: true,
		State: &session.Update{LastScene: session.String("a1_intro")},
	})
	require.Equal(t, http.StatusOK, status)
	got := decodeSnapshot(t, raw)
	assert.Empty(t, got.Session.ProgressFlags)
	assert.Equal(t, 1, got.Session.CurrentAct)
	assert.Equal(t, "a1_intro", *got.Session.LastScene)
}

func TestSession_EventsDeduplicated(t *testing.T) {
	srv, ts := newTestServer(t)
	snap := createProfile(t, ts)
	ev := &api.Event{ID: "evt-1", Seq: 1, Type: "navigate"}

	for i := 0; i < 2; i++ {
		status, _ := post(t, ts, api.PathSession, api.SessionRequest{
			ProfileID: snap.Profile.ID, PIN: "1234",
			State: &session.Update{LastScene: session.String("a1_code")},
			Event: ev,
		})
		require.Equal(t, http.StatusOK, status)
	}
	assert.Len(t, srv.Events(snap.Profile.ID), 1)
}

func TestMinigame_Revalidates(t *testing.T) {
	_, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, raw := submit(t, ts, story.KindArtifactCode, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a1_code", Code: "n0rth"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "WRONG_CODE", decodeError(t, raw).Code)

	status, raw = submit(t, ts, story.KindLocation, api.MinigameRequest{
		ProfileID: id, PIN: "1234", SceneID: "a2_checkin",
		Position: &geo.Point{Lat: 53.53, Lng: -1.131},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "OUT_OF_RANGE", decodeError(t, raw).Code)

	status, raw = submit(t, ts, story.KindLocation, api.MinigameRequest{
		ProfileID: id, PIN: "1234", SceneID: "a2_checkin",
		Position: &geo.Point{Lat: 53.5221, Lng: -1.131},
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.True(t, decodeSnapshot(t, raw).Session.HasFlag("beacon_reached"))
}

func TestMinigame_SceneAndKindMustMatch(t *testing.T) {
	_, ts := newTestServer(t)
	snap := createProfile(t, ts)

	status, raw := submit(t, ts, story.KindLocation, api.MinigameRequest{ProfileID: snap.Profile.ID, PIN: "1234", SceneID: "a1_code", Code: "N0RTH"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, api.CodeKindMismatch, decodeError(t, raw).Code)

	status, raw = submit(t, ts, story.KindMosaic, api.MinigameRequest{ProfileID: snap.Profile.ID, PIN: "1234", SceneID: "a1_intro"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, api.CodeUnknownScene, decodeError(t, raw).Code)
}

func TestMinigame_TimedGamesNeedFinishedRecord(t *testing.T) {
	_, ts := newTestServer(t)
	snap := createProfile(t, ts)
	id := snap.Profile.ID

	status, raw := submit(t, ts, story.KindReflex, api.MinigameRequest{ProfileID: id, PIN: "1234", SceneID: "a2_reflex"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "NOT_FINISHED", decodeError(t, raw).Code)

	status, raw = submit(t, ts, story.KindReflex, api.MinigameRequest{
		ProfileID: id, PIN: "1234", SceneID: "a2_reflex",
		Record: session.FlagRecord{"status": "completed", "hits": 5},
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	rec := decodeSnapshot(t, raw).Session.ProgressFlags["focus_completed"]
	assert.Equal(t, float64(5), rec["hits"])
	assert.Equal(t, testNow.Format(time.RFC3339Nano), rec["validated_at"])
}

func TestMinigame_EndingSetsSessionEnding(t *testing.T) {
	_, ts := newTestServer(t)
	snap := createProfile(t, ts)

	status, raw := submit(t, ts, story.KindEndingChoice, api.MinigameRequest{ProfileID: snap.Profile.ID, PIN: "1234", SceneID: "a4_ending", ChoiceID: "release"})
	require.Equal(t, http.StatusOK, status, string(raw))
	got := decodeSnapshot(t, raw)
	require.NotNil(t, got.Session.EndingChoice)
	assert.Equal(t, "release", *got.Session.EndingChoice)
	assert.True(t, got.Session.Ended())

	status, _ = submit(t, ts, story.KindEndingChoice, api.MinigameRequest{ProfileID: snap.Profile.ID, PIN: "1234", SceneID: "a4_ending", ChoiceID: "release"})
	assert.Equal(t, http.StatusOK, status, "the same choice is idempotent")

	status, raw = submit(t, ts, story.KindEndingChoice, api.MinigameRequest{ProfileID: snap.Profile.ID, PIN: "1234", SceneID: "a4_ending", ChoiceID: "keep"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, api.CodeEnded, decodeError(t, raw).Code)
}
