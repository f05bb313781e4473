package gotd

// Файловые идентификаторы и скачивание. file_id Bot API — самодостаточная
// ссылка: вид файла, id, access hash и file reference, упакованные в
// base64url. Реестр сопоставляет ссылкам короткие локальные id, которыми
// оперирует ядро между getFile и завершением скачивания.

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/tdapi"
)

// Вид файла в ссылке.
const (
	fileKindPhoto    = 1
	fileKindDocument = 2
)

// fileRef — распакованная ссылка на файл.
type fileRef struct {
	Kind          byte
	ID            int64
	AccessHash    int64
	FileReference []byte
	ThumbSize     string
	Size          int64
}

// encodeFileRef упаковывает ссылку в file_id.
func encodeFileRef(ref fileRef) string {
	var b bin.Buffer
	b.Put([]byte{ref.Kind})
	b.PutLong(ref.ID)
	b.PutLong(ref.AccessHash)
	b.PutBytes(ref.FileReference)
	b.PutString(ref.ThumbSize)
	b.PutLong(ref.Size)
	return base64.RawURLEncoding.EncodeToString(b.Buf)
}

// decodeFileRef распаковывает file_id; ошибка — ссылка чужая или битая.
func decodeFileRef(fileID string) (fileRef, error) {
	raw, err := base64.RawURLEncoding.DecodeString(fileID)
	if err != nil {
		return fileRef{}, err
	}
	b := bin.Buffer{Buf: raw}
	var ref fileRef
	var kind [1]byte
	if err = b.ConsumeN(kind[:], 1); err != nil {
		return fileRef{}, err
	}
	ref.Kind = kind[0]
	if ref.ID, err = b.Long(); err != nil {
		return fileRef{}, err
	}
	if ref.AccessHash, err = b.Long(); err != nil {
		return fileRef{}, err
	}
	if ref.FileReference, err = b.Bytes(); err != nil {
		return fileRef{}, err
	}
	if ref.ThumbSize, err = b.String(); err != nil {
		return fileRef{}, err
	}
	if ref.Size, err = b.Long(); err != nil {
		return fileRef{}, err
	}
	return ref, nil
}

// uniqueFileID — стабильный идентификатор без access hash и file reference.
func uniqueFileID(ref fileRef) string {
	var b bin.Buffer
	b.Put([]byte{ref.Kind})
	b.PutLong(ref.ID)
	return base64.RawURLEncoding.EncodeToString(b.Buf)
}

// encodeInlineMessageID упаковывает идентификатор inline-сообщения в строку
// Bot API (TL-кодирование + base64url).
func encodeInlineMessageID(id tg.InputBotInlineMessageIDClass) string {
	var b bin.Buffer
	if err := id.Encode(&b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b.Buf)
}

// decodeInlineMessageID — обратное преобразование.
func decodeInlineMessageID(s string) (tg.InputBotInlineMessageIDClass, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	b := bin.Buffer{Buf: raw}
	return tg.DecodeInputBotInlineMessageID(&b)
}

// fileRecord — файл, известный реестру.
type fileRecord struct {
	localID int32
	fileID  string
	ref     fileRef
	path    string

	downloading bool
}

// fileRegistry — реестр файлов одного моста.
type fileRegistry struct {
	mu       sync.Mutex
	nextID   int32
	byRemote map[string]*fileRecord
	byLocal  map[int32]*fileRecord
}

func newFileRegistry() *fileRegistry {
	return &fileRegistry{
		byRemote: make(map[string]*fileRecord),
		byLocal:  make(map[int32]*fileRecord),
	}
}

// intern выдаёт запись для ссылки, создавая её при первом обращении.
func (r *fileRegistry) intern(fileID string, ref fileRef) *fileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byRemote[fileID]; ok {
		return rec
	}
	r.nextID++
	rec := &fileRecord{localID: r.nextID, fileID: fileID, ref: ref}
	r.byRemote[fileID] = rec
	r.byLocal[rec.localID] = rec
	return rec
}

func (r *fileRegistry) byLocalID(id int32) *fileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byLocal[id]
}

// beginDownload отмечает запись активной; false — скачивание уже идёт.
func (r *fileRegistry) beginDownload(rec *fileRecord, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.downloading {
		return false
	}
	rec.downloading = true
	rec.path = path
	return true
}

func (r *fileRegistry) endDownload(rec *fileRecord) {
	r.mu.Lock()
	rec.downloading = false
	r.mu.Unlock()
}

// fileState собирает объект файла для ядра по текущему состоянию на диске.
func (b *Bus) fileState(rec *fileRecord) *tdapi.File {
	f := &tdapi.File{
		ID:             rec.localID,
		RemoteID:       rec.fileID,
		RemoteUniqueID: uniqueFileID(rec.ref),
		Size:           rec.ref.Size,
		ExpectedSize:   rec.ref.Size,
	}
	if rec.path != "" {
		if st, err := os.Stat(rec.path); err == nil && (rec.ref.Size == 0 || st.Size() == rec.ref.Size) {
			f.LocalPath = rec.path
			f.DownloadCompleted = true
			f.Size = st.Size()
		}
	}
	f.DownloadingActive = rec.downloading
	return f
}

// handleGetRemoteFile разрешает file_id в объект файла.
func (b *Bus) handleGetRemoteFile(id uint64, req tdapi.GetRemoteFile) {
	ref, err := decodeFileRef(req.FileID)
	if err != nil {
		b.respondErr(id, 400, "invalid remote file identifier")
		return
	}
	rec := b.files.intern(req.FileID, ref)
	b.respond(id, tdapi.Response{Result: b.fileState(rec)})
}

// handleDownloadFile запускает скачивание; завершение придёт событием UpdateFile.
func (b *Bus) handleDownloadFile(ctx context.Context, api *tg.Client, id uint64, req tdapi.DownloadFile) {
	rec := b.files.byLocalID(req.FileID)
	if rec == nil {
		b.respondErr(id, 400, "invalid file identifier")
		return
	}

	state := b.fileState(rec)
	if state.DownloadCompleted {
		b.respond(id, tdapi.Response{Result: state})
		b.emit(tdapi.UpdateFile{File: state})
		return
	}

	path := filepath.Join(b.opts.Dir, "files", fileName(rec))
	if !b.files.beginDownload(rec, path) {
		b.respond(id, tdapi.Response{Result: state})
		return
	}
	b.respond(id, tdapi.Response{Result: b.fileState(rec)})

	go func() {
		err := b.download(ctx, api, rec, path)
		b.files.endDownload(rec)
		if err != nil {
			b.log.Warn("file download failed", zap.Int32("file_id", rec.localID), zap.Error(err))
			failed := b.fileState(rec)
			failed.DownloadError = translateError(err)
			b.emit(tdapi.UpdateFile{File: failed})
			return
		}
		b.emit(tdapi.UpdateFile{File: b.fileState(rec)})
	}()
}

// download скачивает файл в каталог бота.
func (b *Bus) download(ctx context.Context, api *tg.Client, rec *fileRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	var location tg.InputFileLocationClass
	switch rec.ref.Kind {
	case fileKindPhoto:
		location = &tg.InputPhotoFileLocation{
			ID:            rec.ref.ID,
			AccessHash:    rec.ref.AccessHash,
			FileReference: rec.ref.FileReference,
			ThumbSize:     rec.ref.ThumbSize,
		}
	case fileKindDocument:
		location = &tg.InputDocumentFileLocation{
			ID:            rec.ref.ID,
			AccessHash:    rec.ref.AccessHash,
			FileReference: rec.ref.FileReference,
		}
	default:
		return fmt.Errorf("unknown file kind %d", rec.ref.Kind)
	}

	_, err := downloader.NewDownloader().Download(api, location).ToPath(ctx, path)
	return err
}

// fileName — имя файла на диске: вид и локальный id.
func fileName(rec *fileRecord) string {
	prefix := "document"
	if rec.ref.Kind == fileKindPhoto {
		prefix = "photo"
	}
	return prefix + "_" + strconv.Itoa(int(rec.localID)) + ".bin"
}
