package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsonNull = []byte(`null`)

// ContentOrParts is the content of a user message: either a plain string or
// a list of typed parts.
type ContentOrParts struct {
	Content string
	Parts   []ContentPart
	_       struct{} // require keyed usage
}

// MarshalJSON renders plain content as a JSON string and parts as an array.
// Empty content marshals to null.
func (c ContentOrParts) MarshalJSON() ([]byte, error) {
	if c.Content != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

func (c *ContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if jv.IsArray() {
		aj := jv.Array()
		parts := make([]ContentPart, len(aj))
		for idx, ajv := range aj {
			part, err := unmarshalContentPart(ajv)
			if err != nil {
				return fmt.Errorf("content part at %d: %w", idx, err)
			}
			parts[idx] = part
		}
		c.Parts = parts
		return nil
	}
	c.Content = jv.String()
	return nil
}

// AssistantContentOrParts is the content of an assistant message: plain
// text, a refusal, or a list of assistant parts. Content and Refusal are
// mutually exclusive.
type AssistantContentOrParts struct {
	Content string
	Parts   []AssistantContentPart
	Refusal string
	_       struct{} // require keyed usage
}

func (c AssistantContentOrParts) MarshalJSON() ([]byte, error) {
	if c.Content != "" && c.Refusal != "" {
		return nil, fmt.Errorf("both Content and Refusal are set")
	}
	if c.Content != "" {
		return json.Marshal(c.Content)
	}
	if c.Refusal != "" {
		return json.Marshal(c.Refusal)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

func (c *AssistantContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if jv.IsArray() {
		aj := jv.Array()
		parts := make([]AssistantContentPart, len(aj))
		for idx, ajv := range aj {
			switch tpe := ajv.Get("type").String(); tpe {
			case "text":
				var part TextContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("content part at %d: %w", idx, err)
				}
				parts[idx] = part
			case "refusal":
				var part RefusalContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("content part at %d: %w", idx, err)
				}
				parts[idx] = part
			default:
				return fmt.Errorf("content part at %d has an unknown type %q", idx, tpe)
			}
		}
		c.Parts = parts
		return nil
	}
	c.Content = jv.String()
	return nil
}

func unmarshalContentPart(jv gjson.Result) (ContentPart, error) {
	switch tpe := jv.Get("type").String(); tpe {
	case "text":
		var part TextContentPart
		if err := part.UnmarshalJSON([]byte(jv.Raw)); err != nil {
			return nil, err
		}
		return part, nil
	case "image":
		var part ImageContentPart
		if err := part.UnmarshalJSON([]byte(jv.Raw)); err != nil {
			return nil, err
		}
		return part, nil
	default:
		return nil, fmt.Errorf("unknown type %q", tpe)
	}
}

// ContentPart is a piece of user-provided content.
type ContentPart interface {
	contentPart()
}

// AssistantContentPart is a piece of assistant-produced content.
type AssistantContentPart interface {
	assistantContentPart()
}

// Text builds a text content part.
func Text(text string) TextContentPart {
	return TextContentPart{Text: text}
}

// Image builds an image content part referencing a URL.
func Image(url string) ImageContentPart {
	return ImageContentPart{URL: url}
}

// Refusal builds a refusal content part.
func Refusal(refusal string) RefusalContentPart {
	return RefusalContentPart{Refusal: refusal}
}

type TextContentPart struct {
	Text string
	_    struct{}
}

func (TextContentPart) contentPart()          {}
func (TextContentPart) assistantContentPart() {}

func (t TextContentPart) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{"type":"text"}`), "text", t.Text)
	return result, err
}

func (t *TextContentPart) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return fmt.Errorf("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

type ImageContentPart struct {
	URL    string
	Detail string
	_      struct{}
}

func (ImageContentPart) contentPart() {}

func (i ImageContentPart) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{"type":"image"}`), "image_url", i.URL)
	if err != nil {
		return nil, err
	}
	if i.Detail != "" {
		result, err = sjson.SetBytes(result, "detail", i.Detail)
	}
	return result, err
}

func (i *ImageContentPart) UnmarshalJSON(input []byte) error {
	url := gjson.GetBytes(input, "image_url")
	if !url.Exists() {
		return fmt.Errorf("missing required field 'image_url'")
	}
	i.URL = url.String()
	i.Detail = gjson.GetBytes(input, "detail").String()
	return nil
}

type RefusalContentPart struct {
	Refusal string
	_       struct{}
}

func (RefusalContentPart) assistantContentPart() {}

func (r RefusalContentPart) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{"type":"refusal"}`), "refusal", r.Refusal)
	return result, err
}

func (r *RefusalContentPart) UnmarshalJSON(input []byte) error {
	refusal := gjson.GetBytes(input, "refusal")
	if !refusal.Exists() {
		return fmt.Errorf("missing required field 'refusal'")
	}
	r.Refusal = refusal.String()
	return nil
}
