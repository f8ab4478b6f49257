package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAthlete(t *testing.T, db *DB) int64 {
	t.Helper()
	ftp := 250
	maxHR := 185
	err := db.UpsertAthlete(&Athlete{
		ID:           42,
		Firstname:    "Test",
		Lastname:     "Athlete",
		FTP:          &ftp,
		MaxHeartRate: &maxHR,
	})
	require.NoError(t, err)
	return 42
}

func testActivity(athleteID, id int64, start time.Time) *Activity {
	avgHR := 150.0
	return &Activity{
		ID:               id,
		AthleteID:        athleteID,
		Name:             "Morning Ride",
		Type:             "Ride",
		SportType:        "Ride",
		Distance:         30000,
		MovingTime:       3600,
		ElapsedTime:      3700,
		StartDate:        start,
		AverageHeartrate: &avgHR,
		HasHeartrate:     true,
	}
}

func TestUpsertActivityIdempotent(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	created, err := db.UpsertActivity(testActivity(athleteID, 100, start))
	require.NoError(t, err)
	assert.True(t, created)

	// Same activity again should update, not create
	a := testActivity(athleteID, 100, start)
	a.Name = "Renamed Ride"
	created, err = db.UpsertActivity(a)
	require.NoError(t, err)
	assert.False(t, created)

	count, err := db.CountActivities(athleteID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := db.GetActivity(100)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Ride", got.Name)
	assert.True(t, got.StartDate.Equal(start))
	require.NotNil(t, got.AverageHeartrate)
	assert.Equal(t, 150.0, *got.AverageHeartrate)
}

func TestActivitiesInRangeOrdering(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	// Insert out of order
	for i, day := range []int{5, 1, 3} {
		_, err := db.UpsertActivity(testActivity(athleteID, int64(200+i), base.AddDate(0, 0, day)))
		require.NoError(t, err)
	}

	got, err := db.ActivitiesInRange(athleteID, base, base.AddDate(0, 0, 4))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].StartDate.Before(got[1].StartDate))

	earliest, err := db.EarliestActivityDate(athleteID)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.True(t, earliest.Equal(base.AddDate(0, 0, 1)))
}

func TestEarliestActivityDateEmpty(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	earliest, err := db.EarliestActivityDate(athleteID)
	require.NoError(t, err)
	assert.Nil(t, earliest)
}

func TestActivitiesNeedingStreams(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := db.UpsertActivity(testActivity(athleteID, int64(300+i), base.AddDate(0, 0, i)))
		require.NoError(t, err)
	}

	// Streams already stored for the middle one
	require.NoError(t, db.SaveStream(&ActivityStream{
		ActivityID: 301,
		StreamType: "heartrate",
		Data:       "[140,150,160]",
	}))

	missing, err := db.ActivitiesNeedingStreams(athleteID, base, 50)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, int64(300), missing[0].ID)
	assert.Equal(t, int64(302), missing[1].ID)

	// Limit applies
	missing, err = db.ActivitiesNeedingStreams(athleteID, base, 1)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(300), missing[0].ID)
}

func TestSaveStreamUpsert(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)
	_, err := db.UpsertActivity(testActivity(athleteID, 400, time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, db.SaveStream(&ActivityStream{
		ActivityID:   400,
		StreamType:   "watts",
		Data:         "[200,210]",
		OriginalSize: 2,
	}))
	require.NoError(t, db.SaveStream(&ActivityStream{
		ActivityID:   400,
		StreamType:   "watts",
		Data:         "[200,210,220]",
		OriginalSize: 3,
	}))

	streams, err := db.GetStreams(400)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "[200,210,220]", streams[0].Data)
	assert.Equal(t, 3, streams[0].OriginalSize)

	has, err := db.HasStreams(400)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTrainingLoadSeeding(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	for _, l := range []TrainingLoad{
		{AthleteID: athleteID, Date: "2024-03-01", DailyTSS: 50, ActivityCount: 1, CTL: 1.19, ATL: 7.14, TSB: -5.95},
		{AthleteID: athleteID, Date: "2024-03-02", DailyTSS: 0, CTL: 1.16, ATL: 6.12, TSB: -4.96},
		{AthleteID: athleteID, Date: "2024-03-03", DailyTSS: 80, ActivityCount: 1, CTL: 3.04, ATL: 16.67, TSB: -13.63},
	} {
		l := l
		require.NoError(t, db.UpsertTrainingLoad(&l))
	}

	seed, err := db.TrainingLoadBefore(athleteID, "2024-03-03")
	require.NoError(t, err)
	require.NotNil(t, seed)
	assert.Equal(t, "2024-03-02", seed.Date)
	assert.Equal(t, 1.16, seed.CTL)

	seed, err = db.TrainingLoadBefore(athleteID, "2024-03-01")
	require.NoError(t, err)
	assert.Nil(t, seed)

	latest, err := db.LatestTrainingLoad(athleteID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2024-03-03", latest.Date)

	rng, err := db.TrainingLoadRange(athleteID, "2024-03-01", "2024-03-02")
	require.NoError(t, err)
	assert.Len(t, rng, 2)
}

func TestUpsertTrainingLoadReplacesDay(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	require.NoError(t, db.UpsertTrainingLoad(&TrainingLoad{AthleteID: athleteID, Date: "2024-03-01", DailyTSS: 50, CTL: 1.19}))
	require.NoError(t, db.UpsertTrainingLoad(&TrainingLoad{AthleteID: athleteID, Date: "2024-03-01", DailyTSS: 75, CTL: 1.79}))

	got, err := db.TrainingLoadOn(athleteID, "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 75.0, got.DailyTSS)
	assert.Equal(t, 1.79, got.CTL)
}

func TestSyncRecordLifecycle(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	_, err := db.LastSuccessfulSync(athleteID)
	assert.ErrorIs(t, err, ErrNoSyncRecord)

	rec, err := db.CreateSyncRecord(athleteID, SyncTypeIncremental)
	require.NoError(t, err)
	assert.Equal(t, SyncStatusInProgress, rec.SyncStatus)
	assert.NotEmpty(t, rec.ID)

	lastDate := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	lastID := int64(999)
	rec.SyncStatus = SyncStatusSuccess
	rec.ActivitiesSynced = 3
	rec.ActivitiesUpdated = 1
	rec.StreamsSynced = 2
	rec.LastActivityID = &lastID
	rec.LastActivityDate = &lastDate
	require.NoError(t, db.CompleteSyncRecord(rec))

	got, err := db.LastSuccessfulSync(athleteID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 3, got.ActivitiesSynced)
	require.NotNil(t, got.LastActivityDate)
	assert.True(t, got.LastActivityDate.Equal(lastDate))
	require.NotNil(t, got.CompletedAt)
	assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
}

func TestLastSuccessfulSyncSkipsFailures(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	ok, err := db.CreateSyncRecord(athleteID, SyncTypeFull)
	require.NoError(t, err)
	ok.SyncStatus = SyncStatusSuccess
	require.NoError(t, db.CompleteSyncRecord(ok))

	failed, err := db.CreateSyncRecord(athleteID, SyncTypeIncremental)
	require.NoError(t, err)
	failed.SyncStatus = SyncStatusFailed
	failed.ErrorMessage = "rate limited"
	require.NoError(t, db.CompleteSyncRecord(failed))

	got, err := db.LastSuccessfulSync(athleteID)
	require.NoError(t, err)
	assert.Equal(t, ok.ID, got.ID)

	latest, err := db.LatestSync(athleteID)
	require.NoError(t, err)
	assert.Equal(t, failed.ID, latest.ID)
	assert.Equal(t, "rate limited", latest.ErrorMessage)

	history, err := db.SyncHistory(athleteID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTokenNewestRowWins(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	_, err := db.LatestToken(athleteID)
	assert.ErrorIs(t, err, ErrNoToken)

	first := &OAuthToken{
		AthleteID:    athleteID,
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Hour).UTC(),
	}
	require.NoError(t, db.SaveToken(first))

	second := &OAuthToken{
		AthleteID:    athleteID,
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    time.Now().Add(6 * time.Hour).UTC(),
	}
	require.NoError(t, db.SaveToken(second))
	assert.Greater(t, second.ID, first.ID)

	got, err := db.LatestToken(athleteID)
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.False(t, got.NeedsRefresh(5*time.Minute))

	id, err := db.AnyAthleteID()
	require.NoError(t, err)
	assert.Equal(t, athleteID, id)
}

func TestZoneReplaceAndOrder(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	zones := []TrainingZone{
		{ZoneNumber: 2, MinValue: 111, MaxValue: 130, Name: "Endurance"},
		{ZoneNumber: 1, MinValue: 0, MaxValue: 111, Name: "Recovery"},
	}
	require.NoError(t, db.ReplaceZones(athleteID, ZoneTypeHeartRate, zones))

	got, err := db.GetZones(athleteID, ZoneTypeHeartRate)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ZoneNumber)
	assert.Equal(t, "Recovery", got[0].Name)

	// Replacing again removes the old set
	require.NoError(t, db.ReplaceZones(athleteID, ZoneTypeHeartRate, zones[:1]))
	got, err = db.GetZones(athleteID, ZoneTypeHeartRate)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Upsert on the same (type, number) updates in place
	require.NoError(t, db.UpsertZone(&TrainingZone{
		AthleteID: athleteID, ZoneType: ZoneTypeHeartRate, ZoneNumber: 2,
		MinValue: 112, MaxValue: 131, Name: "Endurance",
	}))
	got, err = db.GetZones(athleteID, ZoneTypeHeartRate)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 112.0, got[0].MinValue)
}

func TestUpsertAthletePreservesThresholds(t *testing.T) {
	db := NewTestDB(t)
	athleteID := seedAthlete(t, db)

	// Profile refresh with no threshold data must keep stored values
	require.NoError(t, db.UpsertAthlete(&Athlete{ID: athleteID, Firstname: "Test", Lastname: "Athlete"}))

	got, err := db.GetAthlete(athleteID)
	require.NoError(t, err)
	require.NotNil(t, got.FTP)
	assert.Equal(t, 250, *got.FTP)
	require.NotNil(t, got.MaxHeartRate)
	assert.Equal(t, 185, *got.MaxHeartRate)

	newFTP := 260
	require.NoError(t, db.SetAthleteThresholds(athleteID, &newFTP, nil, nil))
	got, err = db.GetAthlete(athleteID)
	require.NoError(t, err)
	assert.Equal(t, 260, *got.FTP)
	assert.Equal(t, 185, *got.MaxHeartRate)

	err = db.SetAthleteThresholds(999, &newFTP, nil, nil)
	assert.ErrorIs(t, err, ErrAthleteNotFound)
}
