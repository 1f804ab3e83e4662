// Package fileutil provides file system helpers shared by the renderer, the
// mixer and the SoundFont locator.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"
)

// ErrNotFound はファイルが見つからない場合に返される
var ErrNotFound = errors.New("file not found")

// FindFileCaseInsensitive はディレクトリ内のファイルを大文字小文字を無視して検索する
//
// Parameters:
//   - dir: 検索するディレクトリ
//   - filename: 検索するファイル名
//
// Returns:
//   - string: 見つかったファイルの実際のパス
//   - error: 見つからない場合は ErrNotFound をラップしたエラー
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	// まず直接アクセスを試みる
	direct := filepath.Join(dir, filename)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s (failed to read directory %s: %v)", ErrNotFound, filename, dir, err)
	}

	fold := cases.Fold()
	searchName := fold.String(filename)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if fold.String(entry.Name()) == searchName {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// Exists はパスが通常ファイルとして存在するかを返す
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// MissingPaths は存在しないパスを入力順で返す
func MissingPaths(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if !Exists(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// WriteAtomic は同じディレクトリの一時ファイルに書き込み、成功した場合のみ
// path へリネームする。失敗時は一時ファイルを削除し、path には何も残さない。
func WriteAtomic(path string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), fs.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
