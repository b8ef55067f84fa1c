package lyrics

import (
	"context"
	"testing"
)

type replyAI string

func (r replyAI) Name() string { return "fake" }

func (r replyAI) HandleText(ctx context.Context, msg string) (string, error) {
	return string(r), nil
}

func TestIdentify(t *testing.T) {
	id := NewIdentifier(replyAI("```json\n{\"is_song\": true, \"title\": \"晴天\", \"artist\": \"周杰伦\"}\n```"))
	song, err := id.Identify(context.Background(), Song{MediaID: "x", Title: "周杰伦 Jay Chou【晴天】Official MV"})
	if err != nil {
		t.Fatal(err)
	}
	if song.Title != "晴天" || song.Artist != "周杰伦" || song.MediaID != "x" {
		t.Errorf("unexpected song %+v", song)
	}
}

func TestIdentifyNotASong(t *testing.T) {
	id := NewIdentifier(replyAI(`{"is_song": false}`))
	in := Song{Title: "Podcast episode 12"}
	song, err := id.Identify(context.Background(), in)
	if err != nil || song != in {
		t.Errorf("got %+v, %v", song, err)
	}
}

func TestIdentifySkipsKnownArtist(t *testing.T) {
	var id *Identifier
	in := Song{Title: "Song", Artist: "Artist"}
	if song, _ := id.Identify(context.Background(), in); song != in {
		t.Error("nil identifier should pass songs through")
	}
	song, _ := NewIdentifier(replyAI("garbage")).Identify(context.Background(), in)
	if song != in {
		t.Error("songs with an artist are not sent to the model")
	}
}
