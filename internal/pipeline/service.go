package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"sluice/internal/config"
	"sluice/internal/fileutil"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/services"
)

// Service is the production Processor. It walks one video through audio
// fetch, transcription, grammar correction, caption upload, translation,
// and delivery, honoring the per-stage feature toggles.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	video    *VdoCipherClient
	speech   *Transcriber
	text     *TextProcessor
	delivery *DeliveryClient
}

func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		video:    NewVdoCipherClient(cfg.VdoCipher),
		speech:   NewTranscriber(cfg.Speech),
		text:     NewTextProcessor(cfg.Speech, cfg.Translation),
		delivery: NewDeliveryClient(cfg.Delivery),
	}
}

func (s *Service) Close() error {
	var first error
	for _, closer := range []interface{ Close() error }{s.video, s.speech, s.text, s.delivery} {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Process runs the full pipeline for one video. The returned flags record
// every stage that succeeded even when a later stage fails. Stages disabled
// by configuration record their flag as satisfied so completion tracking
// stays uniform across differently-configured runs.
func (s *Service) Process(ctx context.Context, videoID string) (ledger.Flags, error) {
	ctx = services.WithVideoID(ctx, videoID)
	flags := ledger.Flags{}
	logger := s.logger.With(logging.String(logging.FieldVideoID, videoID))

	audioPath, cleanup, err := s.fetchAudio(ctx, videoID)
	if err != nil {
		return flags, itemErr(videoID, err)
	}
	defer cleanup()

	transcript, err := s.speech.Transcribe(ctx, audioPath)
	if err != nil {
		return flags, itemErr(videoID, err)
	}
	logger.Info("transcribed audio", logging.Int("bytes", len(transcript)))

	if s.cfg.Translation.EnableGrammarCorrection {
		transcript, err = s.text.CorrectGrammar(ctx, transcript)
		if err != nil {
			return flags, itemErr(videoID, err)
		}
	}

	if err := s.uploadCaption(ctx, videoID, s.cfg.Speech.Language, transcript); err != nil {
		return flags, itemErr(videoID, err)
	}
	flags[ledger.FlagUploaded] = true

	if err := s.translateAndUpload(ctx, videoID, transcript, "ru", s.cfg.Translation.EnableRussian, flags, ledger.FlagTranslatedRU); err != nil {
		return flags, itemErr(videoID, err)
	}
	if err := s.translateAndUpload(ctx, videoID, transcript, "ar", s.cfg.Translation.EnableArabic, flags, ledger.FlagTranslatedAR); err != nil {
		return flags, itemErr(videoID, err)
	}

	if s.cfg.Delivery.Enabled {
		if err := s.delivery.Deliver(ctx, videoID, transcript); err != nil {
			return flags, itemErr(videoID, err)
		}
	}
	flags[ledger.FlagDelivered] = true

	logger.Info("pipeline complete")
	return flags, nil
}

func (s *Service) fetchAudio(ctx context.Context, videoID string) (string, func(), error) {
	noop := func() {}
	files, err := s.video.Files(ctx, videoID)
	if err != nil {
		return "", noop, err
	}
	audio, err := SelectAudio(files)
	if err != nil {
		return "", noop, err
	}
	url, err := s.video.FileURL(ctx, videoID, audio.ID)
	if err != nil {
		return "", noop, err
	}

	if err := os.MkdirAll(s.cfg.Paths.WorkDir, 0o755); err != nil {
		return "", noop, services.Wrap(services.ErrConfiguration, "pipeline", "fetch-audio", "create work directory", err)
	}
	dest := filepath.Join(s.cfg.Paths.WorkDir, videoID+filepath.Ext(audio.Name))
	if err := s.video.Download(ctx, url, dest); err != nil {
		return "", noop, err
	}
	return dest, func() { _ = os.Remove(dest) }, nil
}

func (s *Service) uploadCaption(ctx context.Context, videoID, language, vtt string) error {
	path := filepath.Join(s.cfg.Paths.WorkDir, videoID+"."+language+".vtt")
	if err := fileutil.WriteFileAtomic(path, []byte(vtt), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "upload-caption", "write caption file", err)
	}
	defer os.Remove(path)
	return s.video.UploadCaption(ctx, videoID, language, path)
}

func (s *Service) translateAndUpload(ctx context.Context, videoID, transcript, lang string, enabled bool, flags ledger.Flags, flag string) error {
	if !enabled {
		flags[flag] = true
		return nil
	}
	translated, err := s.text.Translate(ctx, transcript, lang)
	if err != nil {
		return err
	}
	if err := s.uploadCaption(ctx, videoID, lang, translated); err != nil {
		return err
	}
	flags[flag] = true
	return nil
}
