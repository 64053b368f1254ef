package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/rtf-converter/internal/domain/model"
)

// repoFactory возвращает пустой репозиторий для одного подтеста.
type repoFactory func(t *testing.T) FileRepository

// runFileRepositoryContract проверяет общее поведение обеих реализаций.
func runFileRepositoryContract(t *testing.T, newRepo repoFactory) {
	t.Run("AddAndFindByID", func(t *testing.T) { testAddAndFindByID(t, newRepo(t)) })
	t.Run("AddTwiceDistinctIDs", func(t *testing.T) { testAddTwiceDistinctIDs(t, newRepo(t)) })
	t.Run("EmptyContent", func(t *testing.T) { testEmptyContent(t, newRepo(t)) })
	t.Run("FindByIDNotFound", func(t *testing.T) { testFindByIDNotFound(t, newRepo(t)) })
	t.Run("FindAllFilter", func(t *testing.T) { testFindAllFilter(t, newRepo(t)) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newRepo(t)) })
	t.Run("UpdateCAS", func(t *testing.T) { testUpdateCAS(t, newRepo(t)) })
	t.Run("UpdateExpired", func(t *testing.T) { testUpdateExpired(t, newRepo(t)) })
	t.Run("UpdateConcurrent", func(t *testing.T) { testUpdateConcurrent(t, newRepo(t)) })
	t.Run("DeleteExpired", func(t *testing.T) { testDeleteExpired(t, newRepo(t)) })
	t.Run("CancelledContext", func(t *testing.T) { testCancelledContext(t, newRepo(t)) })
}

// testNow — время вставки с точностью до микросекунд (точность хранилищ).
var testNow = time.Date(2026, 5, 17, 10, 20, 30, 123456000, time.UTC)

func newTestFile(t *testing.T, name string) model.ValidNewFile {
	t.Helper()
	content := []byte("{\\rtf1\\ansi " + name + "}")
	v, err := model.NewFile{
		FileBinaryContent: content,
		ContentType:       "application/rtf",
		FileName:          name,
		FileSize:          int64(len(content)),
		InsertionDate:     testNow,
	}.Validate()
	if err != nil {
		t.Fatalf("Validate() ошибка: %v", err)
	}
	return v
}

func mustAdd(t *testing.T, repo FileRepository, f model.ValidNewFile) model.FileIdentifier {
	t.Helper()
	id, err := repo.Add(context.Background(), f)
	if err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}
	return id
}

func mustUpdate(t *testing.T, u model.FileUpdate) model.ValidFileUpdate {
	t.Helper()
	v, err := u.Validate()
	if err != nil {
		t.Fatalf("FileUpdate.Validate() ошибка: %v", err)
	}
	return v
}

func testAddAndFindByID(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	tenant := uuid.New()
	owner := uuid.New()
	engine := "handlebars"
	engineVersion := int32(4)
	day := 24 * time.Hour

	content := []byte("{\\rtf1 шаблон}")
	v, err := model.NewFile{
		TenantID:                &tenant,
		OwnerID:                 &owner,
		FileBinaryContent:       content,
		ContentType:             "application/rtf",
		FileName:                "отчёт.rtf",
		FileSize:                int64(len(content)),
		InsertionDate:           testNow,
		MaxAge:                  model.ExpiresAt(testNow, &day),
		TemplatingEngine:        &engine,
		TemplatingEngineVersion: &engineVersion,
	}.Validate()
	if err != nil {
		t.Fatalf("Validate() ошибка: %v", err)
	}

	id, err := repo.Add(ctx, v)
	if err != nil {
		t.Fatalf("Add() ошибка: %v", err)
	}
	if id.Version != 1 {
		t.Errorf("Version = %d, ожидалась 1", id.Version)
	}
	if id.UniqueID == uuid.Nil {
		t.Error("UniqueID не назначен")
	}

	got, err := repo.FindByID(ctx, id.UniqueID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %+v, ожидался %+v", got.ID, id)
	}
	if string(got.FileBinaryContent) != string(content) {
		t.Errorf("FileBinaryContent = %q", got.FileBinaryContent)
	}
	if got.FileName != "отчёт.rtf" || got.ContentType != "application/rtf" || got.FileSize != int64(len(content)) {
		t.Errorf("метаданные = %q %q %d", got.FileName, got.ContentType, got.FileSize)
	}
	if got.TenantID == nil || *got.TenantID != tenant {
		t.Errorf("TenantID = %v, ожидался %v", got.TenantID, tenant)
	}
	if got.OwnerID == nil || *got.OwnerID != owner {
		t.Errorf("OwnerID = %v, ожидался %v", got.OwnerID, owner)
	}
	if !got.InsertionDate.Equal(testNow) {
		t.Errorf("InsertionDate = %v, ожидалось %v", got.InsertionDate, testNow)
	}
	if got.MaxAge == nil || got.MaxAge.Sub(got.InsertionDate) != day {
		t.Errorf("MaxAge = %v, ожидалось insertion_date + 24h", got.MaxAge)
	}
	if got.TemplatingEngine == nil || *got.TemplatingEngine != engine {
		t.Errorf("TemplatingEngine = %v", got.TemplatingEngine)
	}
	if got.TemplatingEngineVersion == nil || *got.TemplatingEngineVersion != engineVersion {
		t.Errorf("TemplatingEngineVersion = %v", got.TemplatingEngineVersion)
	}
}

func testAddTwiceDistinctIDs(t *testing.T, repo FileRepository) {
	f := newTestFile(t, "same.rtf")
	a := mustAdd(t, repo, f)
	b := mustAdd(t, repo, f)
	if a.UniqueID == b.UniqueID {
		t.Errorf("одинаковые UniqueID для двух загрузок: %v", a.UniqueID)
	}
	if a.Version != 1 || b.Version != 1 {
		t.Errorf("версии = %d, %d, ожидались 1", a.Version, b.Version)
	}
}

func testEmptyContent(t *testing.T, repo FileRepository) {
	v, err := model.NewFile{
		ContentType:   "text/plain",
		FileName:      "empty.rtf",
		InsertionDate: testNow,
	}.Validate()
	if err != nil {
		t.Fatalf("Validate() ошибка: %v", err)
	}
	id := mustAdd(t, repo, v)

	got, err := repo.FindByID(context.Background(), id.UniqueID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if len(got.FileBinaryContent) != 0 || got.FileSize != 0 {
		t.Errorf("ожидался пустой файл, получено %d байт (size=%d)", len(got.FileBinaryContent), got.FileSize)
	}
}

func testFindByIDNotFound(t *testing.T, repo FileRepository) {
	_, err := repo.FindByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		t.Error("отсутствие записи не должно быть StorageError")
	}
}

func testFindAllFilter(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	for _, name := range []string{"report.rtf", "Report-2.rtf", "100%_done.rtf", "1000_done.rtf"} {
		mustAdd(t, repo, newTestFile(t, name))
	}

	tests := []struct {
		name   string
		filter *string
		want   int
	}{
		{"без фильтра", nil, 4},
		{"подстрока", strPtr("port"), 2},
		{"регистр учитывается", strPtr("Report"), 1},
		{"процент буквально", strPtr("%_"), 1},
		{"подчёркивание буквально", strPtr("0_"), 1},
		{"нет совпадений", strPtr("xlsx"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := repo.FindAll(ctx, model.FileConditions{FileName: tt.filter})
			if err != nil {
				t.Fatalf("FindAll() ошибка: %v", err)
			}
			if len(files) != tt.want {
				names := make([]string, 0, len(files))
				for _, f := range files {
					names = append(names, f.FileName)
				}
				t.Errorf("найдено %d (%v), ожидалось %d", len(files), names, tt.want)
			}
		})
	}
}

func testDeleteIdempotent(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	id := mustAdd(t, repo, newTestFile(t, "delete.rtf"))

	if err := repo.Delete(ctx, id.UniqueID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.FindByID(ctx, id.UniqueID); !errors.Is(err, ErrNotFound) {
		t.Errorf("после удаления ожидалась ErrNotFound, получено: %v", err)
	}
	if err := repo.Delete(ctx, id.UniqueID); err != nil {
		t.Errorf("повторный Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, uuid.New()); err != nil {
		t.Errorf("Delete() несуществующего ошибка: %v", err)
	}
}

func testUpdateCAS(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	day := 24 * time.Hour
	v, err := model.NewFile{
		ContentType:   "application/rtf",
		FileName:      "cas.rtf",
		InsertionDate: testNow,
		MaxAge:        model.ExpiresAt(testNow, &day),
	}.Validate()
	if err != nil {
		t.Fatalf("Validate() ошибка: %v", err)
	}
	id := mustAdd(t, repo, v)

	// Смена имени и снятие срока хранения: версия 1 → 2
	newName := "cas-renamed.rtf"
	engineVersion := int32(7)
	next, err := repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{
		ExpectedVersion:         1,
		FileName:                &newName,
		MaxAge:                  &model.MaxAgeChange{},
		TemplatingEngineVersion: &engineVersion,
	}))
	if err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if next.UniqueID != id.UniqueID || next.Version != 2 {
		t.Errorf("Update() = %+v, ожидалась версия 2 того же файла", next)
	}

	got, err := repo.FindByID(ctx, id.UniqueID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if got.ID.Version != 2 || got.FileName != newName || got.MaxAge != nil {
		t.Errorf("после обновления: version=%d name=%q max_age=%v", got.ID.Version, got.FileName, got.MaxAge)
	}
	if got.TemplatingEngineVersion == nil || *got.TemplatingEngineVersion != 7 {
		t.Errorf("TemplatingEngineVersion = %v, ожидалось 7", got.TemplatingEngineVersion)
	}
	if got.ContentType != "application/rtf" {
		t.Errorf("ContentType изменился: %q", got.ContentType)
	}

	// Устаревшая версия
	other := "stale.rtf"
	_, err = repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{ExpectedVersion: 1, FileName: &other}))
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("ожидалась ErrVersionConflict, получено: %v", err)
	}

	// Установка срока хранения
	until := testNow.Add(time.Hour)
	next, err = repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{
		ExpectedVersion: 2,
		MaxAge:          &model.MaxAgeChange{Until: &until},
	}))
	if err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if next.Version != 3 {
		t.Errorf("Version = %d, ожидалась 3", next.Version)
	}
	got, _ = repo.FindByID(ctx, id.UniqueID)
	if got.MaxAge == nil || !got.MaxAge.Equal(until) {
		t.Errorf("MaxAge = %v, ожидалось %v", got.MaxAge, until)
	}

	// Несуществующий файл
	_, err = repo.Update(ctx, uuid.New(), mustUpdate(t, model.FileUpdate{ExpectedVersion: 1, FileName: &other}))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}

func testUpdateConcurrent(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	id := mustAdd(t, repo, newTestFile(t, "race.rtf"))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "race-" + string(rune('a'+i)) + ".rtf"
			u, err := model.FileUpdate{ExpectedVersion: 1, FileName: &name}.Validate()
			if err != nil {
				t.Errorf("Validate() ошибка: %v", err)
				return
			}
			_, err = repo.Update(ctx, id.UniqueID, u)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrVersionConflict):
				conflicts++
			default:
				t.Errorf("неожиданная ошибка Update(): %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 || conflicts != writers-1 {
		t.Errorf("успешных = %d, конфликтов = %d; ожидалось 1 и %d", succeeded, conflicts, writers-1)
	}

	got, err := repo.FindByID(ctx, id.UniqueID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if got.ID.Version != 2 {
		t.Errorf("Version = %d, ожидалась 2", got.ID.Version)
	}
}

func testUpdateExpired(t *testing.T, repo FileRepository) {
	ctx := context.Background()
	hour := time.Hour
	v, err := model.NewFile{
		ContentType:   "application/rtf",
		FileName:      "expiring.rtf",
		InsertionDate: testNow,
		MaxAge:        model.ExpiresAt(testNow, &hour),
	}.Validate()
	if err != nil {
		t.Fatalf("Validate() ошибка: %v", err)
	}
	id := mustAdd(t, repo, v)
	expiry := testNow.Add(hour)

	// Снятие срока после истечения не воскрешает файл
	for _, at := range []time.Time{expiry, expiry.Add(time.Minute)} {
		_, err := repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{
			ExpectedVersion: 1,
			MaxAge:          &model.MaxAgeChange{},
			At:              at,
		}))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Update(at=%v): ожидалась ErrNotFound, получено: %v", at, err)
		}
	}
	got, err := repo.FindByID(ctx, id.UniqueID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if got.ID.Version != 1 || got.MaxAge == nil || !got.MaxAge.Equal(expiry) {
		t.Errorf("файл изменён: version=%d max_age=%v", got.ID.Version, got.MaxAge)
	}

	// Устаревшая версия у истёкшего файла — тоже ErrNotFound
	name := "late.rtf"
	_, err = repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{
		ExpectedVersion: 5,
		FileName:        &name,
		At:              expiry.Add(time.Second),
	}))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}

	// До истечения обновление проходит
	next, err := repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{
		ExpectedVersion: 1,
		FileName:        &name,
		At:              expiry.Add(-time.Second),
	}))
	if err != nil {
		t.Fatalf("Update() до истечения: %v", err)
	}
	if next.Version != 2 {
		t.Errorf("Version = %d, ожидалась 2", next.Version)
	}

	// Конфликт версий у живого файла остаётся конфликтом
	_, err = repo.Update(ctx, id.UniqueID, mustUpdate(t, model.FileUpdate{
		ExpectedVersion: 1,
		FileName:        &name,
		At:              expiry.Add(-time.Second),
	}))
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("ожидалась ErrVersionConflict, получено: %v", err)
	}
}

func testDeleteExpired(t *testing.T, repo FileRepository) {
	ctx := context.Background()

	add := func(name string, maxAge *time.Duration) model.FileIdentifier {
		v, err := model.NewFile{
			ContentType:   "application/rtf",
			FileName:      name,
			InsertionDate: testNow,
			MaxAge:        model.ExpiresAt(testNow, maxAge),
		}.Validate()
		if err != nil {
			t.Fatalf("Validate() ошибка: %v", err)
		}
		return mustAdd(t, repo, v)
	}
	hour := time.Hour
	week := 7 * 24 * time.Hour

	short := add("short.rtf", &hour)
	long := add("long.rtf", &week)
	forever := add("forever.rtf", nil)

	n, err := repo.DeleteExpired(ctx, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpired() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("удалено %d, ожидалось 1", n)
	}
	if _, err := repo.FindByID(ctx, short.UniqueID); !errors.Is(err, ErrNotFound) {
		t.Errorf("просроченный файл не удалён: %v", err)
	}
	for _, id := range []model.FileIdentifier{long, forever} {
		if _, err := repo.FindByID(ctx, id.UniqueID); err != nil {
			t.Errorf("файл %v удалён ошибочно: %v", id.UniqueID, err)
		}
	}

	// Граница: max_age == now считается истёкшим
	n, err = repo.DeleteExpired(ctx, testNow.Add(week))
	if err != nil {
		t.Fatalf("DeleteExpired() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("удалено %d на границе, ожидалось 1", n)
	}
}

func testCancelledContext(t *testing.T, repo FileRepository) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Add(ctx, newTestFile(t, "cancelled.rtf"))
	var sErr *StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("ожидалась *StorageError, получено: %T %v", err, err)
	}
	if sErr.Op == "" {
		t.Error("StorageError.Op пустой")
	}

	files, err := repo.FindAll(context.Background(), model.FileConditions{})
	if err != nil {
		t.Fatalf("FindAll() ошибка: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("запись сохранена несмотря на отменённый контекст: %d", len(files))
	}
}

func strPtr(s string) *string {
	return &s
}
