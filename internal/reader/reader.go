package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"SpeedwaySync/internal/model"

	"github.com/sirupsen/logrus"
)

// DirReader 读取爬虫输出目录下的 JSON 文件，逐条产出 RawMatchRecord。
// 文件按文件名排序依次处理；单个文件整体解码后再逐条返回，解析失败的文件不产出任何记录。
// 语法正确但不是对象的值（null、字符串、数字）照常产出，标记 NotObject，由校验阶段拒绝。
type DirReader struct {
	dir    string
	files  []string
	logger *logrus.Logger

	next    int // 下一个要打开的文件
	current string
	pending []interface{}
	pos     int
	closed  bool
}

// NewDirReader 扫描目录（不递归），目录本身不可读时返回错误
func NewDirReader(dir string, logger *logrus.Logger) (*DirReader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取源目录 %s 失败: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := lookupFormat(filepath.Ext(name)); !ok {
			logger.WithFields(logrus.Fields{
				"file":      name,
				"supported": SupportedExtensions(),
			}).Debug("跳过不支持的文件类型")
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)

	logger.WithFields(logrus.Fields{
		"dir":   dir,
		"files": len(files),
	}).Info("发现待处理的爬虫输出文件")

	return &DirReader{dir: dir, files: files, logger: logger}, nil
}

// Next 返回下一条记录。全部读完返回 io.EOF；
// 某个文件无法读取或解析时返回 *model.ReadError，此时可以继续调用 Next 读取后续文件。
func (r *DirReader) Next(ctx context.Context) (*model.RawMatchRecord, error) {
	if r.closed {
		return nil, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.pos < len(r.pending) {
			rec := &model.RawMatchRecord{File: r.current, Index: r.pos}
			if obj, ok := r.pending[r.pos].(map[string]interface{}); ok {
				rec.Fields = obj
			} else {
				rec.NotObject = true
			}
			r.pending[r.pos] = nil
			r.pos++
			return rec, nil
		}
		if r.next >= len(r.files) {
			r.pending = nil
			return nil, io.EOF
		}

		path := r.files[r.next]
		r.next++
		name := filepath.Base(path)

		docs, err := decodeFile(path)
		if err != nil {
			r.pending, r.pos = nil, 0
			r.logger.WithError(err).WithField("file", name).Warn("源文件解析失败，跳过该文件")
			return nil, &model.ReadError{File: name, Cause: err}
		}
		if len(docs) == 0 {
			r.logger.WithField("file", name).Info("源文件中没有记录")
		}
		r.current, r.pending, r.pos = name, docs, 0
	}
}

// Files 返回本批次涉及的全部文件（完整路径，已排序）
func (r *DirReader) Files() []string {
	out := make([]string, len(r.files))
	copy(out, r.files)
	return out
}

// Close 释放已缓存的记录，之后 Next 只返回 io.EOF
func (r *DirReader) Close() error {
	r.closed = true
	r.pending = nil
	return nil
}

func decodeFile(path string) ([]interface{}, error) {
	fn, ok := lookupFormat(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("不支持的文件类型: %s", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fn(f)
}
