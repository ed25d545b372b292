package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/config"
	"github.com/M7mdkimoo/myrockai/internal/models"

	"google.golang.org/genai"
)

// ErrMissingCredential gates every provider-backed operation.
var ErrMissingCredential = errors.New("google api key is required")

// Default model ids per operation, overridable via config.
const (
	defaultChatModel      = "gemini-2.5-flash"
	defaultReasoningModel = "gemini-3-pro-preview"
	defaultLiteModel      = "gemini-2.5-flash-lite-latest"
	defaultImageModel     = "imagen-4.0-generate-001"
	defaultImageEditModel = "gemini-2.5-flash-image"
	defaultVideoModel     = "veo-3.1-fast-generate-preview"
	defaultSpeechModel    = "gemini-2.5-flash-preview-tts"
)

const (
	// historyWindow bounds how much prior conversation is forwarded.
	historyWindow = 6
	// Video operations poll at a fixed interval up to a bounded number
	// of attempts, then report a timeout outcome.
	defaultPollInterval = 10 * time.Second
	defaultPollAttempts = 60
)

type modelSet struct {
	chat      string
	reasoning string
	lite      string
	image     string
	imageEdit string
	video     string
	speech    string
}

// Options tunes a single generation request.
type Options struct {
	ThinkingMode bool
	AspectRatio  string
}

// Reply is the single normalized outcome shape for every dispatch class.
type Reply struct {
	Text      string
	Media     *models.GeneratedMedia
	Citations []models.Citation
}

// Service translates a (history, message, category, attachments, options)
// tuple into exactly one Reply. It never mutates the transcript; callers
// append both sides of the exchange.
type Service struct {
	apiKey       string
	models       modelSet
	pollInterval time.Duration
	pollAttempts int
}

// New builds the orchestrator for one stored credential. An absent
// credential fails immediately.
func New(apiKey string, overrides config.ModelConfig) (*Service, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredential
	}
	ms := modelSet{
		chat:      defaultChatModel,
		reasoning: defaultReasoningModel,
		lite:      defaultLiteModel,
		image:     defaultImageModel,
		imageEdit: defaultImageEditModel,
		video:     defaultVideoModel,
		speech:    defaultSpeechModel,
	}
	if overrides.Chat != "" {
		ms.chat = overrides.Chat
	}
	if overrides.Reasoning != "" {
		ms.reasoning = overrides.Reasoning
	}
	if overrides.Lite != "" {
		ms.lite = overrides.Lite
	}
	if overrides.Image != "" {
		ms.image = overrides.Image
	}
	if overrides.ImageEdit != "" {
		ms.imageEdit = overrides.ImageEdit
	}
	if overrides.Video != "" {
		ms.video = overrides.Video
	}
	if overrides.Speech != "" {
		ms.speech = overrides.Speech
	}
	return &Service{
		apiKey:       apiKey,
		models:       ms,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}, nil
}

// Generate resolves the request through the intent rule table and runs the
// selected operation. Media operations absorb provider errors into an
// explanatory text reply; the plain text path propagates them. onStream,
// when non-nil, receives the cumulative text so far on every chunk and is
// only used for plain text generation.
func (s *Service) Generate(ctx context.Context, history []models.Message, message string, category models.ServiceCategory, attachments []models.FileAttachment, opts Options, onStream func(string)) (*Reply, error) {
	caller, err := newCaller(ctx, s.apiKey)
	if err != nil {
		return nil, fmt.Errorf("init provider client: %w", err)
	}

	switch Classify(message, category, attachments) {
	case DispatchImageEdit:
		return s.editImageReply(ctx, caller, message, firstAttachment(attachments, "image/")), nil
	case DispatchImageGen:
		return s.generateImageReply(ctx, caller, message, opts.AspectRatio), nil
	case DispatchVideoGen:
		return s.generateVideoReply(ctx, caller, message, firstAttachment(attachments, "image/")), nil
	}
	return s.generateTextReply(ctx, caller, history, message, category, attachments, opts, onStream)
}

func (s *Service) generateTextReply(ctx context.Context, caller modelCaller, history []models.Message, message string, category models.ServiceCategory, attachments []models.FileAttachment, opts Options, onStream func(string)) (*Reply, error) {
	plan := s.planText(message, category, opts, attachments)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction(category)}},
		},
	}
	if plan.thinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(plan.thinkingBudget)}
	}
	if plan.useMapsTool {
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
	}
	if plan.useSearchTool {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	parts, err := buildParts(history, message, attachments)
	if err != nil {
		return nil, err
	}

	if onStream != nil {
		var full strings.Builder
		citations, err := caller.streamText(ctx, plan.model, parts, cfg, func(delta string) {
			full.WriteString(delta)
			onStream(full.String())
		})
		if err != nil {
			return nil, fmt.Errorf("generate reply: %w", err)
		}
		return &Reply{Text: full.String(), Citations: citations}, nil
	}

	text, citations, err := caller.generateText(ctx, plan.model, parts, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	if text == "" {
		text = "No response generated."
	}
	return &Reply{Text: text, Citations: citations}, nil
}

// buildParts flattens the bounded history window into a context prompt and
// appends the new message plus inline attachment payloads.
func buildParts(history []models.Message, message string, attachments []models.FileAttachment) ([]*genai.Part, error) {
	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}

	var parts []*genai.Part
	if len(recent) > 0 {
		var ctxPrompt strings.Builder
		ctxPrompt.WriteString("History:\n")
		for _, msg := range recent {
			fmt.Fprintf(&ctxPrompt, "%s: %s\n", strings.ToUpper(string(msg.Role)), msg.Text)
		}
		ctxPrompt.WriteString("---\nRequest:\n")
		parts = append(parts, &genai.Part{Text: ctxPrompt.String()})
	}
	parts = append(parts, &genai.Part{Text: message})

	for _, att := range attachments {
		data, err := decodeAttachment(att)
		if err != nil {
			return nil, fmt.Errorf("decode attachment %s: %w", att.Name, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: data, MIMEType: att.MIME}})
	}
	return parts, nil
}

func (s *Service) editImageReply(ctx context.Context, caller modelCaller, prompt string, att *models.FileAttachment) *Reply {
	data, err := decodeAttachment(*att)
	if err != nil {
		return &Reply{Text: fmt.Sprintf("Image editing failed: %s", err)}
	}
	edited, err := caller.editImage(ctx, s.models.imageEdit, prompt, data, att.MIME)
	if err != nil {
		return &Reply{Text: fmt.Sprintf("Image editing failed: %s", err)}
	}
	return &Reply{
		Text: "Here is the edited version of your image.",
		Media: &models.GeneratedMedia{
			Kind: models.MediaImage,
			URL:  dataURL("image/png", edited),
			MIME: "image/png",
		},
	}
}

func (s *Service) generateImageReply(ctx context.Context, caller modelCaller, prompt, aspectRatio string) *Reply {
	if aspectRatio == "" {
		aspectRatio = "1:1"
	}
	image, err := caller.generateImage(ctx, s.models.image, prompt, aspectRatio)
	if err != nil {
		return &Reply{Text: fmt.Sprintf("Image generation failed: %s", err)}
	}
	return &Reply{
		Text: fmt.Sprintf("I've generated an image for you with aspect ratio %s.", aspectRatio),
		Media: &models.GeneratedMedia{
			Kind: models.MediaImage,
			URL:  dataURL("image/jpeg", image),
			MIME: "image/jpeg",
		},
	}
}

func (s *Service) generateVideoReply(ctx context.Context, caller modelCaller, prompt string, seed *models.FileAttachment) *Reply {
	var (
		seedBytes []byte
		seedMIME  string
		err       error
	)
	if seed != nil {
		seedBytes, err = decodeAttachment(*seed)
		if err != nil {
			return &Reply{Text: fmt.Sprintf("Video generation failed: %s", err)}
		}
		seedMIME = seed.MIME
		if prompt == "" {
			prompt = "Animate this image"
		}
	}

	job, err := caller.startVideo(ctx, s.models.video, prompt, seedBytes, seedMIME)
	if err != nil {
		return &Reply{Text: fmt.Sprintf("Video generation failed: %s", err)}
	}

	for attempts := 0; !job.done && attempts < s.pollAttempts; attempts++ {
		select {
		case <-ctx.Done():
			return &Reply{Text: fmt.Sprintf("Video generation failed: %s", ctx.Err())}
		case <-time.After(s.pollInterval):
		}
		job, err = caller.pollVideo(ctx, job)
		if err != nil {
			return &Reply{Text: fmt.Sprintf("Video generation failed: %s", err)}
		}
	}
	if !job.done {
		return &Reply{Text: "Video generation timed out."}
	}

	url := job.uri
	if len(job.bytes) > 0 {
		url = dataURL(job.mime, job.bytes)
	}
	if url == "" {
		return &Reply{Text: "Video generation failed: no video returned"}
	}
	text := "I've generated a video."
	if seed != nil {
		text = "I've animated your image."
	}
	return &Reply{
		Text: text,
		Media: &models.GeneratedMedia{
			Kind: models.MediaVideo,
			URL:  url,
			MIME: job.mime,
		},
	}
}

// Speak synthesizes speech for a transcript message. Errors propagate so
// the caller can surface them.
func (s *Service) Speak(ctx context.Context, text string) (*models.GeneratedMedia, error) {
	caller, err := newCaller(ctx, s.apiKey)
	if err != nil {
		return nil, fmt.Errorf("init provider client: %w", err)
	}
	audio, mime, err := caller.synthesizeSpeech(ctx, s.models.speech, text)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	return &models.GeneratedMedia{
		Kind: models.MediaAudio,
		URL:  dataURL(mime, audio),
		MIME: mime,
	}, nil
}

// Estimate produces the free-text price/scope estimate for a pool request.
func (s *Service) Estimate(ctx context.Context, title, description string, category models.ServiceCategory) (string, error) {
	caller, err := newCaller(ctx, s.apiKey)
	if err != nil {
		return "", fmt.Errorf("init provider client: %w", err)
	}
	text, _, err := caller.generateText(ctx, s.models.chat, []*genai.Part{{Text: estimatePrompt(title, description, category)}}, nil)
	if err != nil {
		return "", fmt.Errorf("generate estimate: %w", err)
	}
	if text == "" {
		return "Estimate unavailable.", nil
	}
	return text, nil
}

// decodeAttachment strips any data URL prefix and decodes the payload.
func decodeAttachment(att models.FileAttachment) ([]byte, error) {
	raw := att.Data
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	return base64.StdEncoding.DecodeString(raw)
}

func dataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
