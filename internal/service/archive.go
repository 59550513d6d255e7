package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Archiver 把处理完成的源文件移动到归档目录，下次运行不再读取
type Archiver struct {
	dir    string
	logger *logrus.Logger
}

func NewArchiver(dir string, logger *logrus.Logger) *Archiver {
	return &Archiver{dir: dir, logger: logger}
}

// Archive 移动文件（同名覆盖）；跨文件系统时退化为复制后删除
func (a *Archiver) Archive(path string) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("创建归档目录失败: %w", err)
	}
	target := filepath.Join(a.dir, filepath.Base(path))

	err := os.Rename(path, target)
	if errors.Is(err, syscall.EXDEV) {
		err = copyThenRemove(path, target)
	}
	if err != nil {
		return fmt.Errorf("归档文件 %s 失败: %w", path, err)
	}
	a.logger.WithFields(logrus.Fields{"file": path, "target": target}).Info("源文件已归档")
	return nil
}

func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
