package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"nestdrive/internal/domain"
	"nestdrive/internal/service/s3"
)

// Число параллельных выгрузок блобов при сборке архива.
const archiveConcurrency = 4

// archiveBuilder собирает zip-архив из набора элементов: блобы файлов
// выгружаются во временный каталог по путям, повторяющим иерархию папок,
// после чего каталог упаковывается и отдаётся в ответ.
type archiveBuilder struct {
	blobs s3.Storage
}

func newArchiveBuilder(blobs s3.Storage) *archiveBuilder {
	return &archiveBuilder{blobs: blobs}
}

// sanitizeName убирает из имени элемента разделители путей, чтобы имя
// не выходило за пределы своего каталога в архиве.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		return "unnamed"
	}
	return name
}

// entryPath строит путь элемента внутри архива по списку его предков.
// Предки вне выборки (например, корень скачиваемой папки не входит в
// rows при скачивании набора файлов) пропускаются.
func entryPath(el *domain.Element, namesByID map[string]string) string {
	parts := make([]string, 0, len(el.Parents)+1)
	for _, ancestorID := range el.Parents {
		name, ok := namesByID[ancestorID]
		if !ok {
			continue
		}
		parts = append(parts, sanitizeName(name))
	}
	parts = append(parts, sanitizeName(el.Name))
	return filepath.Join(parts...)
}

// Stream выгружает блобы, пакует их и пишет архив в http-ответ.
func (b *archiveBuilder) Stream(ctx context.Context, name string, rows []domain.Element, w http.ResponseWriter) error {
	tmpDir, err := os.MkdirTemp("", "nestdrive-zip-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Printf("[Archive] Failed to clean up %s: %v", tmpDir, err)
		}
	}()

	namesByID := make(map[string]string, len(rows))
	for i := range rows {
		namesByID[rows[i].ID.String()] = rows[i].Name
	}

	// Путь в архиве -> элемент; одноимённые файлы в одном каталоге
	// получают суффикс с id, чтобы не перезаписать друг друга.
	paths := make(map[string]*domain.Element, len(rows))
	dirs := make([]string, 0)
	for i := range rows {
		el := &rows[i]
		path := entryPath(el, namesByID)
		if el.IsFolder() {
			dirs = append(dirs, path)
			continue
		}
		if _, taken := paths[path]; taken {
			ext := filepath.Ext(path)
			path = strings.TrimSuffix(path, ext) + "_" + el.ID.String() + ext
		}
		paths[path] = el
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create archive dir %s: %w", dir, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveConcurrency)
	for path, el := range paths {
		if el.BlobID == "" {
			continue
		}
		path, el := path, el
		g.Go(func() error {
			if err := b.blobs.WriteToFile(gctx, el.BlobID, filepath.Join(tmpDir, path)); err != nil {
				return fmt.Errorf("failed to download %s: %w", el.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, sanitizeName(name)))
	return writeZip(tmpDir, w)
}

// writeZip пакует содержимое каталога в zip-поток, сохраняя и пустые
// каталоги.
func writeZip(root string, w io.Writer) error {
	zw := zip.NewWriter(w)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if _, err := zw.Create(rel + "/"); err != nil {
				return fmt.Errorf("failed to add dir %s to archive: %w", rel, err)
			}
			return nil
		}

		entry, err := zw.Create(rel)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", rel, err)
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer file.Close()
		if _, err := io.Copy(entry, file); err != nil {
			return fmt.Errorf("failed to write %s to archive: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
