package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/shouni/go-web-bundle/pkg/types"
)

const (
	// DefaultFilename は、生成されるアーカイブの推奨ファイル名です。
	DefaultFilename = "strony.zip"
	// ContentType は、アーカイブのMIMEタイプです。
	ContentType = "application/zip"
)

// ErrEmpty は、格納するエントリが1件もないことを表します。
var ErrEmpty = errors.New("アーカイブに格納するページがありません")

// Build は、エントリを与えられた順序のまま、フラットなDeflate圧縮のZIPアーカイブに変換します。
// 各エントリのタイムスタンプは固定されるため、同じ入力からは常に同じバイト列が生成されます。
func Build(entries []types.NamedContent) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Filename == "" {
			_ = zw.Close()
			return nil, fmt.Errorf("エントリ名が空です (URL: %s)", entry.URL)
		}
		if _, dup := seen[entry.Filename]; dup {
			_ = zw.Close()
			return nil, fmt.Errorf("エントリ名が重複しています: %s", entry.Filename)
		}
		seen[entry.Filename] = struct{}{}

		if err := writeEntry(zw, entry); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("アーカイブの書き込みに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, entry types.NamedContent) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   entry.Filename,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("エントリの作成に失敗しました (%s): %w", entry.Filename, err)
	}
	if _, err := w.Write(entry.Content); err != nil {
		return fmt.Errorf("エントリの書き込みに失敗しました (%s): %w", entry.Filename, err)
	}
	return nil
}

// Read は、ZIPアーカイブを展開し、格納順のエントリを返します。
func Read(blob []byte) ([]types.NamedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("アーカイブの読み込みに失敗しました: %w", err)
	}

	entries := make([]types.NamedContent, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("エントリを開けません (%s): %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("エントリの読み込みに失敗しました (%s): %w", f.Name, err)
		}
		entries = append(entries, types.NamedContent{Filename: f.Name, Content: content})
	}
	return entries, nil
}
