package ytmusic

import (
	"context"

	"EchoFM/logger"
)

// GetHome returns recommended tracks from the home feed. When the feed
// yields nothing playable (fresh accounts, missing credentials), it falls
// back to a generic chart search so the frontend never starts empty.
func (c *Client) GetHome(ctx context.Context) ([]Song, error) {
	songs, err := c.homeSongs(ctx)
	if err != nil || len(songs) == 0 {
		if err != nil {
			logger.Warn("home feed unavailable, falling back to search", logger.ErrorField(err))
		}
		return c.SearchSongs(ctx, "top hits 2024", 20)
	}
	if len(songs) > 20 {
		songs = songs[:20]
	}
	return songs, nil
}

func (c *Client) homeSongs(ctx context.Context) ([]Song, error) {
	result, err := c.browse(ctx, "FEmusic_home", nil)
	if err != nil {
		return nil, err
	}

	var songs []Song
	tabs := navSlice(result, "contents", "singleColumnBrowseResultsRenderer", "tabs")
	for _, tab := range tabs {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			carousel := navMap(section, "musicCarouselShelfRenderer")
			if carousel == nil {
				continue
			}
			for _, entry := range navSlice(carousel, "contents") {
				item := navMap(entry, "musicResponsiveListItemRenderer")
				if item == nil {
					continue
				}
				if s := parseSongItem(item); s.VideoID != "" {
					songs = append(songs, s)
				}
			}
		}
	}
	return songs, nil
}

// GetSongInfo fetches basic metadata for one track via the player
// endpoint. Returns nil when the track is unavailable.
func (c *Client) GetSongInfo(ctx context.Context, videoID string) (*Song, error) {
	result, err := c.call(ctx, "player", map[string]interface{}{
		"videoId": videoID,
	})
	if err != nil {
		return nil, err
	}

	details := navMap(result, "videoDetails")
	if details == nil {
		return nil, nil
	}
	seconds := navInt(details, "lengthSeconds")
	return &Song{
		VideoID:         videoID,
		Title:           navString(details, "title"),
		Artist:          navString(details, "author"),
		Thumbnail:       lastThumbnail(details, "thumbnail"),
		DurationSeconds: seconds,
		Type:            "song",
	}, nil
}
