package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"SpeedwaySync/internal/interfaces"
	"SpeedwaySync/internal/model"
	"SpeedwaySync/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// LoadOptions 入库任务参数
type LoadOptions struct {
	Location             *time.Location // match_date 所在时区
	DryRun               bool           // 只校验和转换，不写库
	MaxRetries           int            // 瞬时错误最大重试次数（不含首次）
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	Archiver             *Archiver                  // nil 表示不归档
	IsTransient          interfaces.ErrorClassifier // nil 时使用 repository.IsTransient
}

// LoadService 逐条读取原始记录 → 校验/转换 → 幂等写库，并统计结果。
// 单线程顺序处理，一条记录一个事务；单条记录的失败不会中断整个批次。
type LoadService struct {
	src        interfaces.RecordSource
	repo       interfaces.MatchRepository
	normalizer *Normalizer
	opts       LoadOptions
	logger     *logrus.Logger
}

func NewLoadService(src interfaces.RecordSource, repo interfaces.MatchRepository, opts LoadOptions, logger *logrus.Logger) *LoadService {
	if opts.IsTransient == nil {
		opts.IsTransient = repository.IsTransient
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 200 * time.Millisecond
	}
	if opts.RetryMaxInterval < opts.RetryInitialInterval {
		opts.RetryMaxInterval = opts.RetryInitialInterval
	}
	return &LoadService{
		src:        src,
		repo:       repo,
		normalizer: NewNormalizer(opts.Location, logger),
		opts:       opts,
		logger:     logger,
	}
}

// Run 处理整个批次。返回的 error 只表示任务被中断（context 取消）；
// 记录级别的错误都汇总在 RunSummary 中，是否成功看 RunSummary.Succeeded()。
func (s *LoadService) Run(ctx context.Context) (*RunSummary, error) {
	summary := newRunSummary(s.opts.DryRun)
	files := s.src.Files()
	summary.Files = len(files)
	// 有读失败或写失败记录的文件不归档，留给下次运行
	dirtyFiles := make(map[string]bool)

	defer func() {
		summary.FinishedAt = time.Now()
	}()

	for {
		raw, err := s.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var readErr *model.ReadError
		if errors.As(err, &readErr) {
			summary.ReadErrors++
			summary.addError(readErr)
			dirtyFiles[readErr.File] = true
			continue
		}
		if err != nil {
			return summary, err
		}
		summary.Read++

		if err := s.process(ctx, raw, summary, dirtyFiles); err != nil {
			return summary, err
		}
	}

	if summary.Read == 0 {
		summary.EmptyBatch = true
		s.logger.WithField("files", summary.Files).Info(model.ErrEmptyBatch.Error())
	}

	if s.opts.Archiver != nil && !s.opts.DryRun {
		for _, path := range files {
			if dirtyFiles[filepath.Base(path)] {
				continue
			}
			if err := s.opts.Archiver.Archive(path); err != nil {
				s.logger.WithError(err).WithField("file", path).Error("归档失败，文件保留在源目录")
				continue
			}
			summary.Archived++
		}
	}
	return summary, nil
}

// process 单条记录的状态流转：Validating → Skipped | Normalized → Writing → Committed | Failed
func (s *LoadService) process(ctx context.Context, raw *model.RawMatchRecord, summary *RunSummary, dirtyFiles map[string]bool) error {
	entry := s.logger.WithFields(logrus.Fields{"file": raw.File, "index": raw.Index})

	m, err := s.normalizer.Normalize(raw)
	if err != nil {
		var valErr *model.ValidationError
		if !errors.As(err, &valErr) {
			valErr = &model.ValidationError{File: raw.File, Index: raw.Index, Reason: err.Error()}
		}
		summary.Skipped++
		summary.addError(valErr)
		entry.WithError(valErr).Warn("记录校验失败，已跳过")
		return nil
	}
	summary.Validated++
	entry = entry.WithField("match_key", m.MatchKey)

	if s.opts.DryRun {
		entry.Debug("dry-run：校验通过，不写库")
		return nil
	}

	attempts, err := s.writeWithRetry(ctx, m, entry)
	if attempts > 1 {
		summary.Retries += attempts - 1
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		writeErr := &model.WriteError{
			MatchKey:  m.MatchKey,
			File:      m.File,
			Index:     m.Index,
			Attempts:  attempts,
			Transient: s.opts.IsTransient(err),
			Cause:     err,
		}
		summary.Failed++
		summary.addError(writeErr)
		dirtyFiles[raw.File] = true
		entry.WithError(err).WithField("attempts", attempts).Error("比赛写入失败")
		return nil
	}

	summary.Written++
	entry.WithField("attempts", attempts).Debug("比赛已写入")
	return nil
}

// writeWithRetry 瞬时错误按指数退避重试，永久错误立即返回
func (s *LoadService) writeWithRetry(ctx context.Context, m *model.NormalizedMatch, entry *logrus.Entry) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitialInterval
	b.MaxInterval = s.opts.RetryMaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxRetries)), ctx)

	attempts := 0
	op := func() error {
		attempts++
		_, err := s.repo.UpsertMatch(ctx, m)
		if err != nil && !s.opts.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		entry.WithError(err).WithFields(logrus.Fields{
			"attempt": attempts,
			"wait":    wait.String(),
		}).Warn("写库遇到瞬时错误，稍后重试")
	}

	err := backoff.RetryNotify(op, policy, notify)
	return attempts, err
}
