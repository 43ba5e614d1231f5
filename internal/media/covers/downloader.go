package covers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/webp"
)

const (
	// maxCoverSize limits download size to prevent memory exhaustion.
	maxCoverSize = 10 * 1024 * 1024 // 10MB

	// downloadTimeout is the maximum time for a cover download.
	downloadTimeout = 30 * time.Second
)

// DownloadResult is the outcome of fetching and persisting one cover.
type DownloadResult struct {
	RelPath string // path relative to DATA_DIR, e.g. "covers/42.jpg"
	Width   int
	Height  int
	Size    int64
	Error   error
}

// Downloader fetches cover images by URL and persists them via Storage.
type Downloader struct {
	httpClient *http.Client
	storage    *Storage
	logger     *slog.Logger
}

// NewDownloader creates a cover downloader backed by storage.
func NewDownloader(storage *Storage, logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: downloadTimeout},
		storage:    storage,
		logger:     logger,
	}
}

// Download fetches url and persists it as bookID's cover. The file
// extension is derived by content-sniffing the response body, not
// trusted from the URL.
func (d *Downloader) Download(ctx context.Context, bookID int64, url string) *DownloadResult {
	result := &DownloadResult{}

	if url == "" {
		result.Error = errors.New("empty cover url")
		return result
	}

	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download failed: status %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverSize))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	result.Size = int64(len(data))

	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		ext = ".jpg"
	}

	width, height, err := parseImageDimensions(data, ext)
	if err != nil {
		d.logger.Warn("failed to parse cover dimensions", "book_id", bookID, "url", url, "error", err)
	} else {
		result.Width, result.Height = width, height
	}

	relPath, err := d.storage.Save(bookID, data, ext)
	if err != nil {
		result.Error = fmt.Errorf("store: %w", err)
		return result
	}
	result.RelPath = relPath

	d.logger.Info("downloaded cover", "book_id", bookID, "size", result.Size, "width", result.Width, "height", result.Height)
	return result
}

// parseImageDimensions extracts dimensions from JPEG, PNG, or WebP data.
func parseImageDimensions(data []byte, ext string) (width, height int, err error) {
	if len(data) < 24 {
		return 0, 0, errors.New("data too small")
	}

	if w, h, ok := parseJPEGDimensions(data); ok {
		return w, h, nil
	}
	if w, h, ok := parsePNGDimensions(data); ok {
		return w, h, nil
	}
	if ext == ".webp" {
		if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
			return cfg.Width, cfg.Height, nil
		}
	}

	return 0, 0, errors.New("unsupported format")
}

func parseJPEGDimensions(data []byte) (width, height int, ok bool) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, 0, false
	}

	i := 2
	for i < len(data)-9 {
		if data[i] != 0xFF {
			i++
			continue
		}

		marker := data[i+1]
		if marker == 0xC0 || marker == 0xC1 || marker == 0xC2 {
			if i+9 > len(data) {
				return 0, 0, false
			}
			height = int(binary.BigEndian.Uint16(data[i+5 : i+7]))
			width = int(binary.BigEndian.Uint16(data[i+7 : i+9]))
			return width, height, true
		}

		if i+3 >= len(data) {
			break
		}
		segmentLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		i += 2 + segmentLen
	}

	return 0, 0, false
}

func parsePNGDimensions(data []byte) (width, height int, ok bool) {
	pngSig := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	if len(data) < 24 || !bytes.Equal(data[:8], pngSig) {
		return 0, 0, false
	}
	if string(data[12:16]) != "IHDR" {
		return 0, 0, false
	}

	width = int(binary.BigEndian.Uint32(data[16:20]))
	height = int(binary.BigEndian.Uint32(data[20:24]))
	return width, height, true
}
