package ai

import (
	"context"
	"errors"

	"github.com/M7mdkimoo/myrockai/internal/models"

	"google.golang.org/genai"
)

// modelCaller is the transport boundary to the generative provider. The
// orchestration policy lives in Service; tests swap the caller factory.
type modelCaller interface {
	generateText(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, []models.Citation, error)
	streamText(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig, onDelta func(string)) ([]models.Citation, error)
	generateImage(ctx context.Context, model, prompt, aspectRatio string) ([]byte, error)
	editImage(ctx context.Context, model, prompt string, image []byte, mime string) ([]byte, error)
	startVideo(ctx context.Context, model, prompt string, image []byte, mime string) (*videoJob, error)
	pollVideo(ctx context.Context, job *videoJob) (*videoJob, error)
	synthesizeSpeech(ctx context.Context, model, text string) ([]byte, string, error)
}

// videoJob tracks one long-running video generation operation.
type videoJob struct {
	op    *genai.GenerateVideosOperation
	done  bool
	bytes []byte
	uri   string
	mime  string
}

var newCaller = func(ctx context.Context, apiKey string) (modelCaller, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &genaiCaller{client: client}, nil
}

type genaiCaller struct {
	client *genai.Client
}

func userContents(parts []*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

func (g *genaiCaller) generateText(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, []models.Citation, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, userContents(parts), cfg)
	if err != nil {
		return "", nil, err
	}
	return resp.Text(), citationsFrom(resp), nil
}

func (g *genaiCaller) streamText(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig, onDelta func(string)) ([]models.Citation, error) {
	var citations []models.Citation
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, userContents(parts), cfg) {
		if err != nil {
			return nil, err
		}
		if text := resp.Text(); text != "" {
			onDelta(text)
		}
		if found := citationsFrom(resp); len(found) > 0 {
			citations = found
		}
	}
	return citations, nil
}

func citationsFrom(resp *genai.GenerateContentResponse) []models.Citation {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	grounding := resp.Candidates[0].GroundingMetadata
	if grounding == nil {
		return nil
	}
	var citations []models.Citation
	for _, chunk := range grounding.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		citations = append(citations, models.Citation{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return citations
}

func (g *genaiCaller) generateImage(ctx context.Context, model, prompt, aspectRatio string) ([]byte, error) {
	resp, err := g.client.Models.GenerateImages(ctx, model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, errors.New("no image data returned")
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

func (g *genaiCaller) editImage(ctx context.Context, model, prompt string, image []byte, mime string) ([]byte, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: image, MIMEType: mime}},
		{Text: prompt},
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, userContents(parts), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return nil, err
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, errors.New("no edited image returned")
}

func (g *genaiCaller) startVideo(ctx context.Context, model, prompt string, image []byte, mime string) (*videoJob, error) {
	var seed *genai.Image
	if len(image) > 0 {
		seed = &genai.Image{ImageBytes: image, MIMEType: mime}
	}
	op, err := g.client.Models.GenerateVideos(ctx, model, prompt, seed, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     "720p",
		AspectRatio:    "16:9",
	})
	if err != nil {
		return nil, err
	}
	job := &videoJob{op: op}
	job.absorb()
	return job, nil
}

func (g *genaiCaller) pollVideo(ctx context.Context, job *videoJob) (*videoJob, error) {
	op, err := g.client.Operations.GetVideosOperation(ctx, job.op, nil)
	if err != nil {
		return nil, err
	}
	job.op = op
	job.absorb()
	return job, nil
}

// absorb copies completion state and the produced artifact out of the
// underlying operation.
func (j *videoJob) absorb() {
	if j.op == nil {
		return
	}
	j.done = j.op.Done
	if !j.done || j.op.Response == nil || len(j.op.Response.GeneratedVideos) == 0 {
		return
	}
	video := j.op.Response.GeneratedVideos[0].Video
	if video == nil {
		return
	}
	j.bytes = video.VideoBytes
	j.uri = video.URI
	j.mime = video.MIMEType
	if j.mime == "" {
		j.mime = "video/mp4"
	}
}

func (g *genaiCaller) synthesizeSpeech(ctx context.Context, model, text string) ([]byte, string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: "Kore"},
			},
		},
	})
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "audio/pcm"
				}
				return part.InlineData.Data, mime, nil
			}
		}
	}
	return nil, "", errors.New("no audio generated")
}
