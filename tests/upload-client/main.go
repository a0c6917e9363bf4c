// Upload Client — утилита ручного тестирования Media Server.
// Подписывает токены общим секретом (HMAC-SHA256) и выполняет запросы
// к запущенному серверу: загрузка, скачивание, листинг и удаление файлов.
//
// Примеры:
//
//	upload-client -secret dev-secret upload ./photo.jpg
//	upload-client list
//	upload-client get 0f8e2c1ab34d4f6e8a9b0c1d2e3f4a5b.jpg ./downloaded.jpg
//	upload-client -secret dev-secret delete 0f8e2c1ab34d4f6e8a9b0c1d2e3f4a5b.jpg
//	upload-client -secret dev-secret token
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// --- Конфигурация ---

// config хранит параметры клиента из флагов и env-переменных.
type config struct {
	ServerURL string        // -server / CLIENT_SERVER_URL — адрес Media Server
	Secret    string        // -secret / CLIENT_TOKEN_SECRET — секрет подписи токенов
	Timeout   time.Duration // -timeout — таймаут HTTP-запросов
}

// envOrDefault возвращает значение env-переменной или default.
func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// --- Токен ---

// mintToken подписывает текущий момент времени общим секретом.
// Формат токена: "<unix-ts>.<hex(hmac-sha256(secret, ts))>" — как ожидает сервер.
func mintToken(secret string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	return ts + "." + hex.EncodeToString(mac.Sum(nil))
}

// --- Команды ---

// cmdToken печатает свежий токен: удобно для curl.
func cmdToken(cfg config) error {
	fmt.Println(mintToken(cfg.Secret, time.Now()))
	return nil
}

// cmdUpload загружает файл через POST /upload (multipart, поле "file").
func cmdUpload(cfg config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("не удалось сформировать multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("не удалось прочитать файл: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("не удалось завершить multipart: %w", err)
	}

	reqURL := cfg.ServerURL + "/upload?token=" + url.QueryEscape(mintToken(cfg.Secret, time.Now()))
	req, err := http.NewRequest(http.MethodPost, reqURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return run(cfg, req, os.Stdout)
}

// cmdGet скачивает файл через GET /media/{filename}.
// Если указан outPath — сохраняет в файл, иначе пишет в stdout.
func cmdGet(cfg config, filename, outPath string) error {
	req, err := http.NewRequest(http.MethodGet, cfg.ServerURL+"/media/"+url.PathEscape(filename), nil)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("не удалось создать файл %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	return run(cfg, req, out)
}

// cmdList запрашивает список файлов через GET /media.
func cmdList(cfg config) error {
	req, err := http.NewRequest(http.MethodGet, cfg.ServerURL+"/media", nil)
	if err != nil {
		return err
	}
	return run(cfg, req, os.Stdout)
}

// cmdDelete удаляет файл через DELETE /media/{filename}.
func cmdDelete(cfg config, filename string) error {
	reqURL := cfg.ServerURL + "/media/" + url.PathEscape(filename) +
		"?token=" + url.QueryEscape(mintToken(cfg.Secret, time.Now()))
	req, err := http.NewRequest(http.MethodDelete, reqURL, nil)
	if err != nil {
		return err
	}
	return run(cfg, req, os.Stdout)
}

// run выполняет запрос, печатает статус в stderr и тело ответа в out.
// Возвращает ошибку при статусе >= 400, чтобы скрипты видели ненулевой код выхода.
func run(cfg config, req *http.Request, out io.Writer) error {
	client := &http.Client{Timeout: cfg.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("запрос не выполнен: %w", err)
	}
	defer resp.Body.Close()

	fmt.Fprintln(os.Stderr, resp.Proto, resp.Status)
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("не удалось прочитать ответ: %w", err)
	}
	if f, ok := out.(*os.File); ok && f == os.Stdout {
		fmt.Println()
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("сервер ответил статусом %d", resp.StatusCode)
	}
	return nil
}

// --- Main ---

func usage() {
	fmt.Fprintf(os.Stderr, `Утилита ручного тестирования Media Server.

Использование:
  upload-client [флаги] <команда> [аргументы]

Команды:
  upload <файл>     загрузить файл (POST /upload)
  get <имя> [путь]  скачать файл (GET /media/{имя})
  list              список файлов (GET /media)
  delete <имя>      удалить файл (DELETE /media/{имя})
  token             напечатать свежий токен

Флаги:
`)
	flag.PrintDefaults()
}

func main() {
	var cfg config
	flag.StringVar(&cfg.ServerURL, "server", envOrDefault("CLIENT_SERVER_URL", "http://localhost:8000"), "адрес Media Server")
	flag.StringVar(&cfg.Secret, "secret", os.Getenv("CLIENT_TOKEN_SECRET"), "секрет подписи токенов")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "таймаут HTTP-запросов")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "upload":
		if flag.NArg() != 2 {
			err = fmt.Errorf("команда upload ожидает один аргумент: путь к файлу")
			break
		}
		err = cmdUpload(cfg, flag.Arg(1))
	case "get":
		if flag.NArg() < 2 || flag.NArg() > 3 {
			err = fmt.Errorf("команда get ожидает имя файла и необязательный путь сохранения")
			break
		}
		err = cmdGet(cfg, flag.Arg(1), flag.Arg(2))
	case "list":
		err = cmdList(cfg)
	case "delete":
		if flag.NArg() != 2 {
			err = fmt.Errorf("команда delete ожидает один аргумент: имя файла")
			break
		}
		err = cmdDelete(cfg, flag.Arg(1))
	case "token":
		err = cmdToken(cfg)
	default:
		err = fmt.Errorf("неизвестная команда %q", cmd)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
