// Пакет mediastore — операции с медиафайлами на диске.
//
// Хранилище плоское: одна директория, имена файлов — одиночные элементы
// пути без разделителей. Каждое имя, пришедшее снаружи, проходит проверку
// принадлежности хранилищу в два этапа: лексический (форма имени) и
// физический (канонизация через EvalSymlinks и строгая проверка предка).
// Сравнение путей по строковому префиксу не используется.
package mediastore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Ошибки хранилища. Классифицируются вызывающим кодом через errors.Is.
var (
	// ErrInvalidName — имя файла не прошло проверку принадлежности хранилищу.
	ErrInvalidName = errors.New("недопустимое имя файла")
	// ErrNotFound — файл отсутствует в хранилище.
	ErrNotFound = errors.New("файл не найден")
)

// tmpSuffix — суффикс временных файлов незавершённой записи.
const tmpSuffix = ".tmp"

// maxNameLen — максимальная длина имени файла (лимит большинства ФС).
const maxNameLen = 255

// FileInfo — сведения об одном файле хранилища.
type FileInfo struct {
	// Name — имя файла (одиночный элемент пути)
	Name string
	// Size — размер в байтах
	Size int64
}

// MediaStore — управление медиафайлами в одной директории на диске.
type MediaStore struct {
	// root — канонический абсолютный путь директории хранения.
	// Симлинки разрешены один раз при создании; все проверки
	// принадлежности выполняются относительно него.
	root string
}

// New создаёт MediaStore. Директория создаётся, если её нет,
// и канонизируется (absolute + EvalSymlinks) для последующих
// проверок принадлежности.
func New(dir string) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранения %s: %w", dir, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить абсолютный путь %s: %w", dir, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("не удалось канонизировать путь %s: %w", abs, err)
	}

	return &MediaStore{root: root}, nil
}

// Dir возвращает канонический путь директории хранения.
func (s *MediaStore) Dir() string {
	return s.root
}

// Save записывает данные из reader в файл с указанным именем.
// Запись идёт во временный файл в той же директории с последующим
// rename: по финальному имени никогда не виден частично записанный файл.
// Возвращает количество записанных байт.
func (s *MediaStore) Save(name string, reader io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	fullPath := filepath.Join(s.root, name)
	tmpPath := fullPath + tmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка переименования: %w", err)
	}

	return size, nil
}

// Resolve проверяет принадлежность имени хранилищу и возвращает
// канонический путь существующего обычного файла.
//
// Ошибки: ErrInvalidName — имя не прошло лексическую проверку либо
// разрешённый путь выходит за пределы хранилища (симлинк наружу);
// ErrNotFound — файл отсутствует или не является обычным файлом.
// Порядок фиксирован: сначала принадлежность, затем существование.
func (s *MediaStore) Resolve(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.root, name)

	resolved, err := filepath.EvalSymlinks(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("ошибка канонизации пути %s: %w", name, err)
	}

	// Строгая проверка предка: разрешённый путь обязан лежать под root
	rel, err := filepath.Rel(s.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s разрешается за пределы хранилища", ErrInvalidName, name)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("ошибка доступа к файлу %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return resolved, nil
}

// Delete удаляет файл из хранилища. Имя проходит те же проверки
// принадлежности, что и при чтении. Удаление не идемпотентно:
// отсутствующий файл — ErrNotFound.
//
// Удаляется сама запись в директории (для симлинка — ссылка,
// а не её цель).
func (s *MediaStore) Delete(name string) error {
	if _, err := s.Resolve(name); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}
	return nil
}

// Exists сообщает, есть ли в хранилище обычный файл с таким именем.
func (s *MediaStore) Exists(name string) bool {
	_, err := s.Resolve(name)
	return err == nil
}

// List возвращает файлы хранилища в порядке имён.
// Поддиректории, скрытые файлы и временные файлы записи пропускаются.
func (s *MediaStore) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.root, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, tmpSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Файл исчез между ReadDir и Info — пропускаем
			continue
		}
		files = append(files, FileInfo{Name: name, Size: info.Size()})
	}

	return files, nil
}

// checkName — лексическая проверка имени: непустой одиночный элемент
// пути без разделителей, не "." и не "..", разумной длины.
func checkName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: пустое имя", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: имя содержит разделитель пути: %q", ErrInvalidName, name)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: имя длиннее %d символов", ErrInvalidName, maxNameLen)
	}
	return nil
}
