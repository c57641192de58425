package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"resty.dev/v3"

	"sluice/internal/config"
	"sluice/internal/services"
)

// VdoCipherClient talks to the VdoCipher video API: listing a video's files,
// fetching download URLs, and managing caption files.
type VdoCipherClient struct {
	client *resty.Client
	raw    *resty.Client
}

// VideoFile is one file attached to a video (streams, captions).
type VideoFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Language    string `json:"language"`
	BitRate     int    `json:"bitRate"`
}

func NewVdoCipherClient(cfg config.VdoCipher) *VdoCipherClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Authorization", "Apisecret "+cfg.APIKey)
	client.SetHeader("Accept", "application/json")
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	}
	// Separate unauthenticated client for the pre-signed download URLs.
	raw := resty.New()
	if cfg.RequestTimeout > 0 {
		raw.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	}
	return &VdoCipherClient{client: client, raw: raw}
}

func (c *VdoCipherClient) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.raw.Close()
}

// Files lists every file attached to a video.
func (c *VdoCipherClient) Files(ctx context.Context, videoID string) ([]VideoFile, error) {
	var files []VideoFile
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&files).
		Get(fmt.Sprintf("/videos/%s/files", videoID))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "vdocipher", "files", "request file list", err)
	}
	if resp.StatusCode() == 404 {
		return nil, services.Wrap(services.ErrNotFound, "vdocipher", "files", fmt.Sprintf("video %s", videoID), nil)
	}
	if resp.StatusCode() != 200 {
		return nil, services.Wrap(services.ErrExternalAPI, "vdocipher", "files", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	return files, nil
}

// SelectAudio picks the audio stream worth transcribing: the lowest-bitrate
// audio file, since transcription quality does not benefit from more bits.
func SelectAudio(files []VideoFile) (VideoFile, error) {
	var audio []VideoFile
	for _, file := range files {
		if strings.HasPrefix(strings.ToLower(file.ContentType), "audio") {
			audio = append(audio, file)
		}
	}
	if len(audio) == 0 {
		return VideoFile{}, services.Wrap(services.ErrItemProcessing, "vdocipher", "select-audio", "no audio stream available", nil)
	}
	sort.Slice(audio, func(i, j int) bool { return audio[i].BitRate < audio[j].BitRate })
	return audio[0], nil
}

// FileURL fetches the pre-signed download URL for one file.
func (c *VdoCipherClient) FileURL(ctx context.Context, videoID, fileID string) (string, error) {
	var payload struct {
		Redirect string `json:"redirect"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("redirect", "false").
		SetResult(&payload).
		Get(fmt.Sprintf("/videos/%s/files/%s", videoID, fileID))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "vdocipher", "file-url", "request download url", err)
	}
	if resp.StatusCode() != 200 {
		return "", services.Wrap(services.ErrExternalAPI, "vdocipher", "file-url", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	if payload.Redirect == "" {
		return "", services.Wrap(services.ErrExternalAPI, "vdocipher", "file-url", "empty download url in response", nil)
	}
	return payload.Redirect, nil
}

// Download streams a pre-signed URL to destPath.
func (c *VdoCipherClient) Download(ctx context.Context, url, destPath string) error {
	resp, err := c.raw.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return services.Wrap(services.ErrTransient, "vdocipher", "download", "fetch audio", err)
	}
	if resp.StatusCode() != 200 {
		return services.Wrap(services.ErrExternalAPI, "vdocipher", "download", fmt.Sprintf("status %d", resp.StatusCode()), nil)
	}
	if err := os.WriteFile(destPath, resp.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "vdocipher", "download", "write audio file", err)
	}
	return nil
}

// DeleteFile removes a file (typically a stale caption) from a video.
func (c *VdoCipherClient) DeleteFile(ctx context.Context, videoID, fileID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/videos/%s/files/%s", videoID, fileID))
	if err != nil {
		return services.Wrap(services.ErrTransient, "vdocipher", "delete-file", "request delete", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 204 {
		return services.Wrap(services.ErrExternalAPI, "vdocipher", "delete-file", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	return nil
}

// UploadCaption attaches a WebVTT caption in the given language, replacing
// any existing caption for that language first so reruns don't stack
// duplicates.
func (c *VdoCipherClient) UploadCaption(ctx context.Context, videoID, language, vttPath string) error {
	files, err := c.Files(ctx, videoID)
	if err != nil {
		return err
	}
	for _, file := range files {
		if strings.EqualFold(file.ContentType, "text/vtt") && strings.EqualFold(file.Language, language) {
			if err := c.DeleteFile(ctx, videoID, file.ID); err != nil {
				return err
			}
		}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFile("file", vttPath).
		SetQueryParam("language", language).
		Post(fmt.Sprintf("/videos/%s/files", videoID))
	if err != nil {
		return services.Wrap(services.ErrTransient, "vdocipher", "upload-caption", "upload caption", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return services.Wrap(services.ErrExternalAPI, "vdocipher", "upload-caption", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	return nil
}
