package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// OpenAIImageGen is the default ImageGen backed by the Images API.
type OpenAIImageGen struct {
	client openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIImageGen builds an ImageGen for the given image model (spec
// §6 "image model name" env var).
func NewOpenAIImageGen(apiKey, model string, log zerolog.Logger) *OpenAIImageGen {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIImageGen{client: client, model: model, log: log.With().Str("component", "llmclient").Logger()}
}

func (g *OpenAIImageGen) Generate(ctx context.Context, prompt string, quality, size string, reference *ReferenceImage) (ImageResult, error) {
	if reference != nil {
		return g.generateWithReference(ctx, prompt, quality, size, reference)
	}

	params := openai.ImageGenerateParams{
		Model:  g.model,
		Prompt: prompt,
	}
	if quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(quality)
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}

	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		return ImageResult{}, errs.Wrap(errs.UpstreamTransient, "openai image generation", err).WithField("model", g.model)
	}
	return decodeImageResponse(resp)
}

func (g *OpenAIImageGen) generateWithReference(ctx context.Context, prompt, quality, size string, reference *ReferenceImage) (ImageResult, error) {
	ext := "png"
	if strings.Contains(reference.MimeType, "jpeg") {
		ext = "jpg"
	}
	mimeType := reference.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	params := openai.ImageEditParams{
		Model:  g.model,
		Prompt: prompt,
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(reference.Data), "reference."+ext, mimeType),
		},
	}
	if quality != "" {
		params.Quality = openai.ImageEditParamsQuality(quality)
	}
	if size != "" {
		params.Size = openai.ImageEditParamsSize(size)
	}

	resp, err := g.client.Images.Edit(ctx, params)
	if err != nil {
		return ImageResult{}, errs.Wrap(errs.UpstreamTransient, "openai image edit (reference photo)", err).WithField("model", g.model)
	}
	return decodeImageResponse(resp)
}

func decodeImageResponse(resp *openai.ImagesResponse) (ImageResult, error) {
	if len(resp.Data) == 0 {
		return ImageResult{}, errs.New(errs.UpstreamRefused, "openai returned no image data")
	}
	b64 := resp.Data[0].B64JSON
	if b64 == "" {
		return ImageResult{}, errs.New(errs.UpstreamRefused, "openai image response missing b64_json")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return ImageResult{}, errs.Wrap(errs.UpstreamRefused, "decode openai image base64", err)
	}
	mimeType := http.DetectContentType(data)
	if mimeType == "application/octet-stream" {
		mimeType = "image/png"
	}
	return ImageResult{
		Data:     data,
		MimeType: mimeType,
	}, nil
}
