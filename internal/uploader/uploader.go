// Package uploader posts photo files to a running server's ingest endpoint.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/photo-library/internal/constants"
)

// SupportedExtensions are the file extensions picked up by Gather.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png"}

// IsPhotoFile reports whether the file name has a supported extension,
// ignoring case.
func IsPhotoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Gather returns the photo files below root, recursively, in lexical
// order. Unreadable entries are reported in errs and skipped.
func Gather(root string) (paths []string, errs []error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, []error{fmt.Errorf("operation failed on path %s: %w", root, err)}
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() && IsPhotoFile(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("operation failed on directory %s: %w", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsPhotoFile(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return paths, errs
}

// Options configures an Uploader.
type Options struct {
	Concurrency int          // parallel requests, default 4
	HTTPClient  *http.Client // default http.DefaultClient
	Progress    io.Writer    // progress bar output; nil disables the bar
	Logger      *slog.Logger
}

// Result summarises a batch upload.
type Result struct {
	Uploaded   int
	Duplicates int
	Errors     []error
}

// Uploader posts files to /api/photos of one server.
type Uploader struct {
	endpoint    string
	client      *http.Client
	concurrency int
	progress    io.Writer
	logger      *slog.Logger
}

// New creates an uploader for host, given as host:port or as a base URL.
func New(host string, opts Options) (*Uploader, error) {
	endpoint, err := endpointFor(host)
	if err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = constants.DefaultUploadConcurrency
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Uploader{
		endpoint:    endpoint,
		client:      opts.HTTPClient,
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
		logger:      opts.Logger,
	}, nil
}

func endpointFor(host string) (string, error) {
	raw := host
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return "", fmt.Errorf("invalid host '%s': %w", host, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/photos"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Endpoint returns the URL files are posted to.
func (u *Uploader) Endpoint() string {
	return u.endpoint
}

func (u *Uploader) newBar(total int) *progressbar.ProgressBar {
	if u.progress == nil {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(u.progress),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

type fileResult struct {
	index int
	err   error
}

// Upload posts every file with at most Concurrency requests in flight.
// Failures are collected per file in input order; a cancelled ctx fails
// the files not yet sent.
func (u *Uploader) Upload(ctx context.Context, paths []string) Result {
	bar := u.newBar(len(paths))
	defer bar.Finish()

	resultsChan := make(chan fileResult, len(paths))
	semaphore := make(chan struct{}, u.concurrency)
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()

			// Acquire semaphore
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var err error
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = fmt.Errorf("%s: %w", path, ctxErr)
			} else {
				err = u.UploadFile(ctx, path)
			}
			resultsChan <- fileResult{index: idx, err: err}
			bar.Add(1)
		}(i, path)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	errs := make([]error, len(paths))
	for r := range resultsChan {
		errs[r.index] = r.err
	}

	var result Result
	for _, err := range errs {
		var re *ResponseError
		switch {
		case err == nil:
			result.Uploaded++
		case errors.As(err, &re) && re.Status == http.StatusConflict:
			result.Duplicates++
		default:
			result.Errors = append(result.Errors, err)
		}
	}
	return result
}

// UploadFile posts a single file. A non-2xx answer is returned as a
// *ResponseError wrapped with the file path.
func (u *Uploader) UploadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	uploadID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Upload-ID", uploadID)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		u.logger.Debug("photo uploaded", "path", path, "upload_id", uploadID)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return fmt.Errorf("%s: %w", path, newResponseError(resp.StatusCode, body))
}

// ResponseError is a failed upload as reported by the server.
type ResponseError struct {
	Status  int
	Message string
	PhotoID int64
	cause   error
}

func (e *ResponseError) Error() string {
	kind := "Server error"
	if e.Status < 500 {
		kind = "Client error"
	}
	msg := fmt.Sprintf("%s: %s", kind, http.StatusText(e.Status))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ResponseError) Unwrap() error {
	return e.cause
}

// remoteError is one level of the server's cause chain.
type remoteError struct {
	description string
	cause       error
}

func (e *remoteError) Error() string {
	if e.cause != nil {
		return e.description + ": " + e.cause.Error()
	}
	return e.description
}

func (e *remoteError) Unwrap() error {
	return e.cause
}

type errorDesc struct {
	Description string     `json:"description"`
	Cause       *errorDesc `json:"cause"`
}

type errorBody struct {
	Error       string     `json:"error"`
	Description string     `json:"description"`
	Cause       *errorDesc `json:"cause"`
	PhotoID     int64      `json:"photo_id"`
}

func chain(d *errorDesc) error {
	if d == nil {
		return nil
	}
	return &remoteError{description: d.Description, cause: chain(d.Cause)}
}

func newResponseError(status int, body []byte) *ResponseError {
	re := &ResponseError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		re.Message = strings.TrimSpace(string(body))
		return re
	}
	re.Message = eb.Description
	if re.Message == "" {
		re.Message = eb.Error
	}
	re.PhotoID = eb.PhotoID
	re.cause = chain(eb.Cause)
	return re
}
