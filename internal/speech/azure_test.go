package speech

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSSMLEscapesTextAndVoice(t *testing.T) {
	doc, err := ssml(`en-US-"Ava"`, "Salt & pepper <to taste>")
	if err != nil {
		t.Fatalf("ssml: %v", err)
	}

	var parsed struct {
		Voice struct {
			Name string `xml:"name,attr"`
			Text string `xml:",chardata"`
		} `xml:"voice"`
	}
	if err := xml.Unmarshal(doc, &parsed); err != nil {
		t.Fatalf("ssml is not well formed: %v\n%s", err, doc)
	}
	if parsed.Voice.Name != `en-US-"Ava"` {
		t.Fatalf("voice = %q", parsed.Voice.Name)
	}
	if parsed.Voice.Text != "Salt & pepper <to taste>" {
		t.Fatalf("text = %q", parsed.Voice.Text)
	}
}

func TestAzureSynthesize(t *testing.T) {
	var gotKey, gotFormat, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotFormat = r.Header.Get("X-Microsoft-OutputFormat")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer srv.Close()

	c := NewAzureClient("secret", "westeurope", quietLog(), WithEndpoint(srv.URL), WithVoice("en-GB-SoniaNeural"))
	audio, err := c.Synthesize(context.Background(), "Stir & simmer")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "RIFF-audio" {
		t.Fatalf("audio = %q", audio)
	}
	if gotKey != "secret" || gotFormat != DefaultAudioFormat {
		t.Fatalf("headers: key=%q format=%q", gotKey, gotFormat)
	}
	if !strings.Contains(gotBody, `name="en-GB-SoniaNeural"`) || !strings.Contains(gotBody, "Stir &amp; simmer") {
		t.Fatalf("body = %s", gotBody)
	}
	if c.Voice() != "en-GB-SoniaNeural" {
		t.Fatalf("Voice() = %q", c.Voice())
	}
}

func TestAzureSynthesizeReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewAzureClient("secret", "westeurope", quietLog(), WithEndpoint(srv.URL))
	_, err := c.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected an error for a 429")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("error = %v", err)
	}
}
