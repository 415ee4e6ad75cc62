package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoImage is returned when the provider responds without image data.
var ErrNoImage = errors.New("no image generated")

// Client wraps the OpenAI image endpoints. The entitlement layer gates
// every call; the caller records usage only after this client reports
// success.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient() *Client {
	key := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_IMAGE_MODEL")
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	c := openai.NewClient(key)
	return &Client{api: c, model: model}
}

// Generate synthesizes a new image from the prompt and returns PNG bytes.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	return decodeFirst(resp)
}

// Edit applies the prompt to an existing PNG image and returns the edited
// PNG bytes. The SDK takes the source as a file handle, so the upload is
// staged through a temp file.
func (c *Client) Edit(ctx context.Context, prompt string, source []byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "photox-edit-*.png")
	if err != nil {
		return nil, fmt.Errorf("could not stage source image: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(source); err != nil {
		return nil, fmt.Errorf("could not stage source image: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("could not stage source image: %w", err)
	}

	resp, err := c.api.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          tmp,
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE2,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image edit failed: %w", err)
	}
	return decodeFirst(resp)
}

func decodeFirst(resp openai.ImageResponse) ([]byte, error) {
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("could not decode image payload: %w", err)
	}
	return data, nil
}
