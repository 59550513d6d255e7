package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SpeedwaySync/internal/interfaces"
	"SpeedwaySync/internal/model"
	"SpeedwaySync/internal/reader"
	"SpeedwaySync/internal/repository"
	"SpeedwaySync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ========== 测试替身 ==========

type sourceItem struct {
	rec *model.RawMatchRecord
	err error
}

type fakeSource struct {
	files []string
	items []sourceItem
	pos   int
}

func (s *fakeSource) Next(ctx context.Context) (*model.RawMatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it.rec, it.err
}

func (s *fakeSource) Files() []string { return s.files }

func (s *fakeSource) Close() error { return nil }

type fakeRepo struct {
	upsert func(call int, m *model.NormalizedMatch) error
	calls  int
	keys   []string
}

func (r *fakeRepo) UpsertMatch(ctx context.Context, m *model.NormalizedMatch) (uint64, error) {
	r.calls++
	if r.upsert != nil {
		if err := r.upsert(r.calls, m); err != nil {
			return 0, err
		}
	}
	r.keys = append(r.keys, m.MatchKey)
	return uint64(r.calls), nil
}

var errFlaky = errors.New("connection reset by peer")

func isFlaky(err error) bool { return errors.Is(err, errFlaky) }

func testOptions() LoadOptions {
	return LoadOptions{
		Location:             cest,
		MaxRetries:           3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
		IsTransient:          isFlaky,
	}
}

func records(t *testing.T, jsons ...string) []sourceItem {
	items := make([]sourceItem, 0, len(jsons))
	for i, js := range jsons {
		items = append(items, sourceItem{rec: decodeRecord(t, "batch.json", i, js)})
	}
	return items
}

// ========== 用例 ==========

func TestLoad_PartialFailureIsolation(t *testing.T) {
	db := testutil.SetupDB(t)
	logger := testutil.NewLogger()

	items := records(t, matchJSON("52", "38"), matchJSON("45", "45"))
	delete(items[1].rec.Fields, model.FieldMatchDate)
	src := &fakeSource{files: []string{"batch.json"}, items: items}

	svc := NewLoadService(src, repository.NewMatchRepository(db, logger), testOptions(), logger)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Succeeded())
	assert.Equal(t, 2, summary.Read)
	assert.Equal(t, 1, summary.Validated)
	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, summary.Errors, 1)
	var valErr *model.ValidationError
	require.ErrorAs(t, summary.Errors[0], &valErr)
	assert.Equal(t, model.FieldMatchDate, valErr.Field)
	assert.Equal(t, 1, valErr.Index)

	assert.EqualValues(t, 1, testutil.Count(t, db, &model.Match{}))
}

func TestLoad_TransientErrorRetried(t *testing.T) {
	repo := &fakeRepo{upsert: func(call int, _ *model.NormalizedMatch) error {
		if call <= 2 {
			return errFlaky
		}
		return nil
	}}
	src := &fakeSource{items: records(t, matchJSON("52", "38"))}

	summary, err := NewLoadService(src, repo, testOptions(), testutil.NewLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, repo.calls)
	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 2, summary.Retries)
	assert.True(t, summary.Succeeded())
	assert.Empty(t, summary.Errors)
}

func TestLoad_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("duplicate key value violates unique constraint")
	repo := &fakeRepo{upsert: func(call int, _ *model.NormalizedMatch) error {
		if call == 1 {
			return permanent
		}
		return nil
	}}
	second := matchJSON("45", "45")
	src := &fakeSource{items: records(t, matchJSON("52", "38"), second)}

	summary, err := NewLoadService(src, repo, testOptions(), testutil.NewLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, repo.calls, "第一条失败后不重试，第二条继续处理")
	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Retries)
	assert.False(t, summary.Succeeded())

	require.Len(t, summary.Errors, 1)
	var writeErr *model.WriteError
	require.ErrorAs(t, summary.Errors[0], &writeErr)
	assert.False(t, writeErr.Transient)
	assert.Equal(t, 1, writeErr.Attempts)
	assert.Equal(t, 0, writeErr.Index)
	assert.ErrorIs(t, writeErr, permanent)
}

func TestLoad_RetriesExhausted(t *testing.T) {
	repo := &fakeRepo{upsert: func(int, *model.NormalizedMatch) error { return errFlaky }}
	src := &fakeSource{items: records(t, matchJSON("52", "38"))}
	opts := testOptions()
	opts.MaxRetries = 2

	summary, err := NewLoadService(src, repo, opts, testutil.NewLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, repo.calls)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Retries)

	var writeErr *model.WriteError
	require.ErrorAs(t, summary.Errors[0], &writeErr)
	assert.True(t, writeErr.Transient)
	assert.Equal(t, 3, writeErr.Attempts)
}

func TestLoad_EmptyBatch(t *testing.T) {
	repo := &fakeRepo{}
	summary, err := NewLoadService(&fakeSource{}, repo, testOptions(), testutil.NewLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.EmptyBatch)
	assert.True(t, summary.Succeeded())
	assert.Zero(t, summary.Read)
	assert.Zero(t, summary.Written)
	assert.Zero(t, repo.calls)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

func TestLoad_ReadErrorDoesNotFailRun(t *testing.T) {
	items := []sourceItem{{err: &model.ReadError{File: "broken.json", Cause: errors.New("unexpected EOF")}}}
	items = append(items, records(t, matchJSON("52", "38"))...)
	repo := &fakeRepo{}

	summary, err := NewLoadService(&fakeSource{items: items}, repo, testOptions(), testutil.NewLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ReadErrors)
	assert.Equal(t, 1, summary.Written)
	assert.True(t, summary.Succeeded())
	assert.False(t, summary.EmptyBatch)
}

func TestLoad_DryRunDoesNotWrite(t *testing.T) {
	repo := &fakeRepo{}
	opts := testOptions()
	opts.DryRun = true
	src := &fakeSource{items: records(t, matchJSON("52", "38"), matchJSON("40", "50"))}

	summary, err := NewLoadService(src, repo, opts, testutil.NewLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, repo.calls)
	assert.Equal(t, 2, summary.Validated)
	assert.Zero(t, summary.Written)
	assert.True(t, summary.DryRun)
}

func TestLoad_ContextCancelled(t *testing.T) {
	t.Run("开始前取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		repo := &fakeRepo{}
		src := &fakeSource{items: records(t, matchJSON("52", "38"))}

		_, err := NewLoadService(src, repo, testOptions(), testutil.NewLogger()).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, repo.calls)
	})

	t.Run("重试等待中取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		repo := &fakeRepo{upsert: func(int, *model.NormalizedMatch) error {
			cancel()
			return errFlaky
		}}
		src := &fakeSource{items: records(t, matchJSON("52", "38"), matchJSON("40", "50"))}

		summary, err := NewLoadService(src, repo, testOptions(), testutil.NewLogger()).Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, repo.calls)
		assert.Zero(t, summary.Failed, "被中断的记录不计入写入失败")
	})
}

// ========== 端到端：目录 → SQLite ==========

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runDir(t *testing.T, dir string, repo interfaces.MatchRepository, opts LoadOptions) *RunSummary {
	t.Helper()
	logger := testutil.NewLogger()
	src, err := reader.NewDirReader(dir, logger)
	require.NoError(t, err)
	defer src.Close()

	summary, err := NewLoadService(src, repo, opts, logger).Run(context.Background())
	require.NoError(t, err)
	return summary
}

func TestLoad_EndToEnd_LastWriteWins(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := repository.NewMatchRepository(db, testutil.NewLogger())
	dir := t.TempDir()
	opts := testOptions()

	writeFile(t, dir, "round1.json", "["+matchJSON("2", "1")+"]")
	first := runDir(t, dir, repo, opts)
	assert.Equal(t, 1, first.Written)

	var match model.Match
	require.NoError(t, db.First(&match).Error)
	assert.Equal(t, 2, match.HomeScore)
	assert.Equal(t, 1, match.AwayScore)

	counts := func() []int64 {
		return []int64{
			testutil.Count(t, db, &model.Match{}),
			testutil.Count(t, db, &model.Team{}),
			testutil.Count(t, db, &model.MatchTeamInfo{}),
			testutil.Count(t, db, &model.MatchRiderStat{}),
			testutil.Count(t, db, &model.Heat{}),
			testutil.Count(t, db, &model.HeatParticipant{}),
		}
	}
	assert.Equal(t, []int64{1, 2, 2, 4, 2, 6}, counts())

	// 同一批输入再跑一次，数据不变
	runDir(t, dir, repo, opts)
	assert.Equal(t, []int64{1, 2, 2, 4, 2, 6}, counts())

	// 比分修正后的同一场比赛覆盖旧值
	require.NoError(t, os.Remove(filepath.Join(dir, "round1.json")))
	writeFile(t, dir, "round1_fixed.json", matchJSON("3", "1"))
	second := runDir(t, dir, repo, opts)
	assert.Equal(t, 1, second.Written)

	var updated model.Match
	require.NoError(t, db.First(&updated).Error)
	assert.Equal(t, match.ID, updated.ID)
	assert.Equal(t, match.MatchKey, updated.MatchKey)
	assert.Equal(t, 3, updated.HomeScore)
	assert.Equal(t, 1, updated.AwayScore)
	assert.Equal(t, []int64{1, 2, 2, 4, 2, 6}, counts())
}

func TestLoad_EndToEnd_Archive(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := repository.NewMatchRepository(db, testutil.NewLogger())
	dir := t.TempDir()
	archiveDir := filepath.Join(t.TempDir(), "done")

	writeFile(t, dir, "a_good.json", matchJSON("52", "38"))
	writeFile(t, dir, "b_broken.json", `[{"competition": `)
	writeFile(t, dir, "c_invalid.ndjson", `{"competition": "PGE Ekstraliga"}`+"\n")

	opts := testOptions()
	opts.Archiver = NewArchiver(archiveDir, testutil.NewLogger())
	summary := runDir(t, dir, repo, opts)

	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.ReadErrors)
	assert.Equal(t, 2, summary.Archived)
	assert.True(t, summary.Succeeded())

	assert.FileExists(t, filepath.Join(archiveDir, "a_good.json"))
	assert.FileExists(t, filepath.Join(archiveDir, "c_invalid.ndjson"))
	assert.FileExists(t, filepath.Join(dir, "b_broken.json"), "解析失败的文件留在源目录")
	assert.NoFileExists(t, filepath.Join(dir, "a_good.json"))

	// dry-run 不归档
	writeFile(t, dir, "d_more.json", matchJSON("40", "50"))
	opts.DryRun = true
	dry := runDir(t, dir, repo, opts)
	assert.Zero(t, dry.Archived)
	assert.FileExists(t, filepath.Join(dir, "d_more.json"))
}

func TestLoad_SameMatchTwiceInBatchLastWins(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := repository.NewMatchRepository(db, testutil.NewLogger())
	dir := t.TempDir()

	writeFile(t, dir, "round1.json", "["+matchJSON("2", "1")+","+matchJSON("3", "1")+"]")
	summary := runDir(t, dir, repo, testOptions())

	assert.Equal(t, 2, summary.Read)
	assert.Equal(t, 2, summary.Written)
	assert.True(t, summary.Succeeded())

	assert.Equal(t, int64(1), testutil.Count(t, db, &model.Match{}))
	var match model.Match
	require.NoError(t, db.First(&match).Error)
	assert.Equal(t, 3, match.HomeScore, "同一批次内后出现的记录覆盖先出现的")
	assert.Equal(t, 1, match.AwayScore)
}

func TestLoad_NonObjectElementSkippedOthersWritten(t *testing.T) {
	db := testutil.SetupDB(t)
	repo := repository.NewMatchRepository(db, testutil.NewLogger())
	dir := t.TempDir()

	nextWeek := strings.Replace(matchJSON("40", "50"), "07.04.2024", "14.04.2024", 1)
	writeFile(t, dir, "batch.json", "["+matchJSON("52", "38")+", null, "+nextWeek+"]")
	summary := runDir(t, dir, repo, testOptions())

	assert.Equal(t, 3, summary.Read)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.ReadErrors)
	assert.True(t, summary.Succeeded())
	assert.Equal(t, int64(2), testutil.Count(t, db, &model.Match{}))

	require.Len(t, summary.Errors, 1)
	var valErr *model.ValidationError
	require.True(t, errors.As(summary.Errors[0], &valErr))
	assert.Equal(t, "batch.json", valErr.File)
	assert.Equal(t, 1, valErr.Index)
	assert.Equal(t, model.ReasonWrongType, valErr.Reason)
}
