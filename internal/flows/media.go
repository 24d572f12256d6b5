package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calflow/internal/composer"
)

// MangaRequest creates a reading event for the latest chapter of a series,
// or for ChapterURL when given.
type MangaRequest struct {
	Title      string `json:"manga_title"`
	ChapterURL string `json:"chapter_url,omitempty"`
	// OpenChapter sends the chapter link over chat when the event starts.
	// Defaults to true.
	OpenChapter *bool `json:"open_chapter,omitempty"`
	Schedule
}

func (o *Orchestrator) MangaChapter(ctx context.Context, req MangaRequest) (Result, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Result{}, fmt.Errorf("%w: manga_title is required", ErrInvalidRequest)
	}
	if err := req.validateAt(o.now().In(o.loc), mangaTiming); err != nil {
		return Result{}, err
	}

	summary := fmt.Sprintf("Reading Chapter of %s", title)
	description := fmt.Sprintf("Read the chapter here: %s", req.ChapterURL)
	chapterURL := req.ChapterURL

	if chapterURL == "" {
		manga, err := o.Manga.Search(ctx, title)
		if err != nil {
			return Result{}, lookup(err, "manga search", fmt.Sprintf("No manga found with title '%s'.", title))
		}
		chapter, err := o.Manga.LatestChapter(ctx, manga.ID)
		if err != nil {
			return Result{}, lookup(err, "manga chapter lookup", fmt.Sprintf("No chapters available for '%s'.", manga.Title))
		}

		chapterURL = chapter.URL
		summary = fmt.Sprintf("New Chapter of %s Available!", manga.Title)
		if chapter.Number != "" {
			summary = fmt.Sprintf("New Chapter %s of %s Available!", chapter.Number, manga.Title)
		}
		description = fmt.Sprintf("Read the latest chapter here: %s", chapterURL)
		title = manga.Title
	}

	var extra []Target
	if req.OpenChapter == nil || *req.OpenChapter {
		extra = append(extra, Target{
			Channel: ChannelChat,
			Trigger: TriggerStart,
			Message: fmt.Sprintf("Time to read %s: %s", title, chapterURL),
		})
	}

	res, err := o.publish(ctx, req.Schedule, content{
		name:        "manga",
		summary:     summary,
		description: description,
		timing:      mangaTiming,
		extra:       extra,
	})
	if err != nil {
		return Result{}, err
	}

	res.Message = "Manga chapter event handled successfully."
	res.ChapterURL = chapterURL
	return res, nil
}

// AnimeRequest creates an event for the next airing episode of a series.
// Missing times default to the airing time and one hour after it.
type AnimeRequest struct {
	Title    string `json:"anime_title"`
	TrackURI string `json:"track_uri,omitempty"`
	Schedule
}

func (o *Orchestrator) AnimeEpisode(ctx context.Context, req AnimeRequest) (Result, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return Result{}, fmt.Errorf("%w: anime_title is required", ErrInvalidRequest)
	}
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	ep, err := o.Anime.NextAiringEpisode(ctx, title)
	if err != nil {
		return Result{}, lookup(err, "anime lookup", fmt.Sprintf("No upcoming episodes found for %s.", title))
	}

	airing := ep.AiringAt.In(o.loc)
	ep.AiringAt = airing

	s := req.Schedule
	if !s.AllDay {
		if s.StartTime == "" {
			s.StartTime = airing.Format(time.RFC3339)
		}
		if s.EndTime == "" {
			start, err := composer.ParseTimestamp(s.StartTime)
			if err != nil {
				return Result{}, fmt.Errorf("%w: %w", composer.ErrInvalidTimeSpan, err)
			}
			s.EndTime = start.Add(animeLength).Format(time.RFC3339)
		}
	}

	summary := fmt.Sprintf("New Episode of %s (Episode %d)", ep.Title, ep.Number)
	description := fmt.Sprintf("The next episode of %s airs at %s.", ep.Title, airing.Format(time.RFC3339))
	if link := ep.PageURL(); link != "" {
		description += "\nMore info: " + link
	}

	extra := []Target{{
		Channel: ChannelSMS,
		Trigger: TriggerNow,
		Message: fmt.Sprintf("New Episode Alert: %s on %s. Check your calendar for details.", summary, s.StartTime),
	}}
	if req.TrackURI != "" {
		extra = append(extra, Target{
			Channel:       ChannelPlayback,
			Recipient:     req.TrackURI,
			Trigger:       TriggerBeforeStart,
			OffsetMinutes: s.reminder(),
		})
	}

	res, err := o.publish(ctx, s, content{
		name:        "anime",
		summary:     summary,
		description: description,
		timing:      plainTiming,
		extra:       extra,
	})
	if err != nil {
		return Result{}, err
	}

	res.Message = "Anime episode event added"
	res.Episode = &ep
	return res, nil
}
