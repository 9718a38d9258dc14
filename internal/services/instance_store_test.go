package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"BSA-TMPL/internal/apperr"
	"BSA-TMPL/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedData(score float64) map[string]interface{} {
	return map[string]interface{}{
		"overallScore": score,
		"summary":      "auto",
		"_metadata":    map[string]interface{}{"mapperVersion": "1.0"},
	}
}

func seedAnalysis(score float64) map[string]interface{} {
	return map[string]interface{}{"score": score}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, "u1", "case-study", seedData(72), seedAnalysis(72))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "1.0", first.Version)
	assert.Equal(t, models.InstanceStatusDraft, first.Status)
	assert.True(t, first.AutoPopulated)

	second, err := store.Upsert(ctx, "u1", "case-study", seedData(91), seedAnalysis(91))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, store.db.Model(&models.TemplateInstance{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := store.GetInstance(ctx, "u1", "case-study")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 91, asFloat(t, got.Data["overallScore"]))
}

func TestUpsertReplacesWholeDataMap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	_, err = store.CustomizeField(ctx, inst.ID, "summary", "hand edited", "manual override")
	require.NoError(t, err)

	// Re-generation wholesale replaces data, discarding the override.
	_, err = store.Upsert(ctx, "u1", "case-study", seedData(80), seedAnalysis(80))
	require.NoError(t, err)

	got, err := store.GetInstance(ctx, "u1", "case-study")
	require.NoError(t, err)
	assert.Equal(t, "auto", got.Data["summary"])
}

func TestUpsertOverwritesAnalysisLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "roi-analysis", seedData(60), seedAnalysis(60))
	require.NoError(t, err)

	_, err = store.Upsert(ctx, "u1", "roi-analysis", seedData(85), seedAnalysis(85))
	require.NoError(t, err)

	link, err := store.GetAnalysisLink(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.EqualValues(t, 85, link.AnalysisScore)
	assert.True(t, link.AutoPopulated)

	var fields []string
	require.NoError(t, json.Unmarshal(link.PopulatedFields, &fields))
	assert.ElementsMatch(t, []string{"overallScore", "summary"}, fields)

	// One link per instance, overwritten in place.
	var count int64
	require.NoError(t, store.db.Model(&models.AnalysisLink{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertConcurrentSameKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Upsert(ctx, "u1", "case-study", seedData(float64(i)), seedAnalysis(float64(i)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, store.db.Model(&models.TemplateInstance{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "exactly one live instance after concurrent generates")
}

func TestCustomizeFieldAuditChain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	values := []string{"v1", "v2", "v3", "v4"}
	for _, v := range values {
		_, err := store.CustomizeField(ctx, inst.ID, "summary", v, "manual override")
		require.NoError(t, err)
	}

	rows, err := store.ListCustomizations(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, rows, len(values))

	// Each row's original value is the previous row's customized value, starting
	// from the auto-populated value.
	chain := make(map[string]string, len(rows))
	for _, row := range rows {
		var original, customized string
		require.NoError(t, json.Unmarshal(row.OriginalValue, &original))
		require.NoError(t, json.Unmarshal(row.CustomizedValue, &customized))
		assert.Equal(t, "manual", row.Type)
		chain[original] = customized
	}
	assert.Equal(t, map[string]string{
		"auto": "v1",
		"v1":   "v2",
		"v2":   "v3",
		"v3":   "v4",
	}, chain)

	got, err := store.GetInstance(ctx, "u1", "case-study")
	require.NoError(t, err)
	assert.Equal(t, "v4", got.Data["summary"])
}

func TestCustomizeFieldNumericValues(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(72), seedAnalysis(72))
	require.NoError(t, err)

	// Bare JSON scalars must survive the round trip through the audit columns.
	_, err = store.CustomizeField(ctx, inst.ID, "overallScore", 95, "analyst adjustment")
	require.NoError(t, err)

	rows, err := store.ListCustomizations(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var original, customized float64
	require.NoError(t, json.Unmarshal(rows[0].OriginalValue, &original))
	require.NoError(t, json.Unmarshal(rows[0].CustomizedValue, &customized))
	assert.EqualValues(t, 72, original)
	assert.EqualValues(t, 95, customized)

	got, err := store.GetInstanceByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 95, asFloat(t, got.Data["overallScore"]))
}

func TestCustomizeFieldNeverPopulated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	row, err := store.CustomizeField(ctx, inst.ID, "sponsor", "Jordan", "")
	require.NoError(t, err)

	// The field had no prior value; the original is JSON null.
	assert.JSONEq(t, "null", string(row.OriginalValue))

	got, err := store.GetInstanceByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jordan", got.Data["sponsor"])
}

func TestCustomizeFieldNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CustomizeField(context.Background(), uuid.New().String(), "summary", "x", "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestSnapshotVersionMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		snap, err := store.SnapshotVersion(ctx, inst.ID, "", fmt.Sprintf("change %d", i), "u1")
		require.NoError(t, err)
		assert.Equal(t, i, snap.VersionNumber)
		assert.Equal(t, fmt.Sprintf("v%d", i), snap.VersionLabel)
	}

	versions, err := store.ListVersions(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	// Highest version number first.
	assert.Equal(t, 3, versions[0].VersionNumber)
	assert.Equal(t, 1, versions[2].VersionNumber)
}

func TestSnapshotVersionNeverReused(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	s1, err := store.SnapshotVersion(ctx, inst.ID, "", "", "u1")
	require.NoError(t, err)
	_, err = store.SnapshotVersion(ctx, inst.ID, "", "", "u1")
	require.NoError(t, err)

	// Deleting an old snapshot must not cause its number to be reassigned.
	require.NoError(t, store.db.Delete(&models.VersionSnapshot{}, "id = ?", s1.ID).Error)

	s3, err := store.SnapshotVersion(ctx, inst.ID, "", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, s3.VersionNumber)
}

func TestSnapshotVersionConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	var wg sync.WaitGroup
	numbers := make([]int, 6)
	errs := make([]error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := store.SnapshotVersion(ctx, inst.ID, "", "", "u1")
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = snap.VersionNumber
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, numbers)
}

func TestSnapshotImmutable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	snap, err := store.SnapshotVersion(ctx, inst.ID, "before", "", "u1")
	require.NoError(t, err)

	// Mutate the live instance after the snapshot.
	_, err = store.CustomizeField(ctx, inst.ID, "summary", "changed later", "")
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "u1", "case-study", seedData(99), seedAnalysis(99))
	require.NoError(t, err)

	versions, err := store.ListVersions(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, snap.ID, versions[0].ID)
	assert.EqualValues(t, 70, asFloat(t, versions[0].Data["overallScore"]))
	assert.Equal(t, "auto", versions[0].Data["summary"])
}

func TestSnapshotVersionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SnapshotVersion(context.Background(), uuid.New().String(), "", "", "u1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestArchiveReleasesKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	require.NoError(t, store.ArchiveInstance(ctx, first.ID))

	// Archived instances reject per-instance operations.
	_, err = store.CustomizeField(ctx, first.ID, "summary", "x", "")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	// A later generate creates a fresh instance for the same key.
	second, err := store.Upsert(ctx, "u1", "case-study", seedData(50), seedAnalysis(50))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	instances, err := store.ListInstances(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, second.ID, instances[0].ID)
}

func TestReadsReturnEmptyNotError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetInstance(ctx, "nobody", "case-study")
	require.NoError(t, err)
	assert.Nil(t, got)

	instances, err := store.ListInstances(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, instances)

	versions, err := store.ListVersions(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, versions)

	link, err := store.GetAnalysisLink(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestRecordDownloadAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inst, err := store.Upsert(ctx, "u1", "case-study", seedData(70), seedAnalysis(70))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		receipt, err := store.RecordDownload(ctx, inst.ID, "u1", "json", int64(100+i))
		require.NoError(t, err)
		assert.NotEmpty(t, receipt.ID)
	}

	receipts, total, err := store.ListDownloads(ctx, inst.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, receipts, 2)

	receipts, _, err = store.ListDownloads(ctx, inst.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}
