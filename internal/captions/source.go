package captions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

// supplies ordered segments per language. Unavailable languages resolve to an
// empty track; genuine failures return an error.
type Source interface {
	FetchSegments(ctx context.Context, languageTag string) (subtitle.Track, error)
}

// caption source failure codes
type ErrorCode string

const (
	CodePlayerNotFound   ErrorCode = "PLAYER_NOT_FOUND"
	CodeNoCaptions       ErrorCode = "NO_CAPTIONS"
	CodeLanguageNotFound ErrorCode = "LANGUAGE_NOT_FOUND"
	CodeFetchFailed      ErrorCode = "FETCH_FAILED"
	CodeParseFailed      ErrorCode = "PARSE_FAILED"
	CodeURLNotFound      ErrorCode = "URL_NOT_FOUND"
)

// caption source failure
type Error struct {
	Code     ErrorCode
	Language string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Msg
	if e.Language != "" {
		msg += " (" + e.Language + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	coded := apperr.New(e.Code.appCode(), "captions", e.Msg)
	if e.Err == nil {
		return []error{coded}
	}
	return []error{coded, e.Err}
}

func (c ErrorCode) appCode() apperr.Code {
	switch c {
	case CodeFetchFailed:
		return apperr.FetchFailed
	case CodeParseFailed:
		return apperr.ParseFailed
	default:
		return apperr.NotFound
	}
}

func newError(code ErrorCode, lang, msg string, err error) *Error {
	return &Error{Code: code, Language: lang, Msg: msg, Err: err}
}

// reports whether err means the language simply has no captions
func IsUnavailable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodeNoCaptions || e.Code == CodeLanguageNotFound
}

// reports whether err is worth retrying
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeFetchFailed
	}
	return apperr.IsCode(err, apperr.FetchFailed)
}

// maps settings language tags to source language codes
type Languages struct {
	codes map[string]string
}

func DefaultLanguages() *Languages {
	return &Languages{codes: map[string]string{
		"en":    "en",
		"pt-BR": "pt-BR",
		"ja":    "ja",
	}}
}

// registers or overrides a mapping
func (l *Languages) Register(tag, code string) {
	l.codes[tag] = code
}

// source code for tag, unknown tags pass through
func (l *Languages) Code(tag string) string {
	if code, ok := l.codes[tag]; ok {
		return code
	}
	return tag
}

// matches a source code against a tag, case-insensitive with region fallback
// ("pt" stream for "pt-BR")
func MatchLanguage(code, tag string) bool {
	code, tag = strings.ToLower(code), strings.ToLower(tag)
	if code == tag {
		return true
	}
	base, _, _ := strings.Cut(tag, "-")
	return code == base
}

type RetryPolicy struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 250 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
		MaxRetries:      3,
	}
}

// fetches tracks through a Source with retries and per-track isolation
type Fetcher struct {
	source    Source
	languages *Languages
	retry     RetryPolicy
	logger    *logging.Logger
}

func NewFetcher(source Source, languages *Languages, retry RetryPolicy, logger *logging.Logger) *Fetcher {
	if languages == nil {
		languages = DefaultLanguages()
	}
	return &Fetcher{
		source:    source,
		languages: languages,
		retry:     retry,
		logger:    logging.OrNop(logger),
	}
}

// fetches one track, retrying transient failures. Unavailable languages yield
// an empty track without error.
func (f *Fetcher) FetchTrack(ctx context.Context, tag string) (subtitle.Track, error) {
	code := f.languages.Code(tag)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retry.InitialInterval
	bo.MaxElapsedTime = f.retry.MaxElapsedTime

	var policy backoff.BackOff = bo
	if f.retry.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(bo, f.retry.MaxRetries)
	}

	var track subtitle.Track
	operation := func() error {
		segments, err := f.source.FetchSegments(ctx, code)
		if err != nil {
			if IsUnavailable(err) {
				track = subtitle.Track{}
				return nil
			}
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			f.logger.Debugw("Retrying caption fetch", "language", tag, "error", err)
			return err
		}
		track = segments
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return subtitle.Track{}, err
	}
	if track == nil {
		track = subtitle.Track{}
	}
	return track, nil
}

// fetches both tracks concurrently; a failure on one side never blocks the other
func (f *Fetcher) FetchTracks(ctx context.Context, nativeTag, learningTag string) subtitle.Tracks {
	var (
		wg     sync.WaitGroup
		tracks subtitle.Tracks
	)

	fetch := func(role subtitle.Role, tag string, dst *subtitle.Track) {
		defer wg.Done()
		track, err := f.FetchTrack(ctx, tag)
		if err != nil {
			f.logger.Warnw("Failed to fetch caption track",
				"role", role,
				"language", tag,
				"error", err,
			)
			track = subtitle.Track{}
		}
		f.logger.Debugw("Fetched caption track",
			"role", role,
			"language", tag,
			"segments", len(track),
		)
		*dst = track
	}

	wg.Add(2)
	go fetch(subtitle.RoleLearning, learningTag, &tracks.Learning)
	go fetch(subtitle.RoleNative, nativeTag, &tracks.Native)
	wg.Wait()

	return tracks
}
