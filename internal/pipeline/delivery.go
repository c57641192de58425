package pipeline

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"sluice/internal/config"
	"sluice/internal/services"
)

// DeliveryClient pushes finished transcripts to the downstream consumer.
type DeliveryClient struct {
	client   *resty.Client
	endpoint string
}

func NewDeliveryClient(cfg config.Delivery) *DeliveryClient {
	client := resty.New()
	client.SetAuthToken(cfg.Token)
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	}
	return &DeliveryClient{client: client, endpoint: cfg.Endpoint}
}

func (d *DeliveryClient) Close() error {
	return d.client.Close()
}

// Deliver posts the source-language transcript for one video.
func (d *DeliveryClient) Deliver(ctx context.Context, videoID, transcript string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"video_id":   videoID,
			"transcript": transcript,
		}).
		Post(d.endpoint)
	if err != nil {
		return services.Wrap(services.ErrTransient, "delivery", "deliver", "post transcript", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 && resp.StatusCode() != 202 {
		return services.Wrap(services.ErrExternalAPI, "delivery", "deliver", fmt.Sprintf("status %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	return nil
}
