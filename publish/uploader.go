package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"clipstudio/config"
)

// ErrNotConfigured is returned when no service account is set up.
var ErrNotConfigured = errors.New("youtube service_account_file is not configured (or set YOUTUBE_SERVICE_ACCOUNT_FILE)")

var privacyStatuses = map[string]bool{"private": true, "unlisted": true, "public": true}

// Request is one saved clip or job video to publish.
type Request struct {
	Path    string
	Source  Source
	Privacy string

	// Description replaces the generated description when set
	Description string
}

// Result describes a published video.
type Result struct {
	VideoID  string
	URL      string
	Metadata Metadata
}

// Inserter sends a video resource and its media to YouTube.
type Inserter interface {
	Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error)
}

type serviceInserter struct {
	service *youtube.Service
}

func (s serviceInserter) Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	return s.service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(media).
		Context(ctx).
		Do()
}

// Uploader publishes generated videos as YouTube Shorts.
type Uploader struct {
	videos  Inserter
	privacy string
}

// NewUploader authenticates with the configured service account key file.
func NewUploader(ctx context.Context, cfg config.YouTube) (*Uploader, error) {
	if strings.TrimSpace(cfg.ServiceAccountFile) == "" {
		return nil, ErrNotConfigured
	}
	data, err := os.ReadFile(cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}
	return NewUploaderWith(serviceInserter{service: service}, cfg.PrivacyStatus), nil
}

// NewUploaderWith wraps an existing Inserter. privacy is used for requests
// that do not set their own.
func NewUploaderWith(videos Inserter, privacy string) *Uploader {
	return &Uploader{videos: videos, privacy: privacy}
}

// Publish builds metadata from req.Source and uploads the video at req.Path.
func (u *Uploader) Publish(ctx context.Context, req Request) (*Result, error) {
	privacy := strings.ToLower(strings.TrimSpace(req.Privacy))
	if privacy == "" {
		privacy = u.privacy
	}
	if privacy != "" && !privacyStatuses[privacy] {
		return nil, fmt.Errorf("invalid privacy status %q: use private, unlisted or public", privacy)
	}

	meta := BuildMetadata(req.Source, privacy)
	if d := strings.TrimSpace(req.Description); d != "" {
		meta.Description = truncate(d, maxDescriptionRunes)
	}

	file, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat video file: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("video file %s is empty", req.Path)
	}

	log.Info().
		Str("path", req.Path).
		Str("job_id", req.Source.JobID).
		Int("scenes", len(req.Source.Prompts)).
		Float64("mb", float64(info.Size())/(1024*1024)).
		Msg("Uploading to YouTube")

	resp, err := u.videos.Insert(ctx, meta.video(), file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	res := &Result{VideoID: resp.Id, URL: ShortURL(resp.Id), Metadata: meta}
	log.Info().Str("video_id", res.VideoID).Str("url", res.URL).Msg("Uploaded")
	return res, nil
}

func (m Metadata) video() *youtube.Video {
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       m.Title,
			Description: m.Description,
			Tags:        m.Tags,
			CategoryId:  m.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: m.PrivacyStatus,
		},
	}
}

// ShortURL returns the public Shorts link for a video id
func ShortURL(videoID string) string {
	return "https://youtube.com/shorts/" + videoID
}
