package ytmusic

import (
	"context"
	"strings"
)

// GetPodcast fetches a show and its episodes. IDs starting with UC are
// channel IDs and are resolved through the channel page instead; some
// frontends hand either one to the same route.
func (c *Client) GetPodcast(ctx context.Context, podcastID string) (*PodcastDetail, error) {
	if strings.HasPrefix(podcastID, "UC") {
		if detail, err := c.channelAsPodcast(ctx, podcastID); err == nil {
			return detail, nil
		}
	}

	result, err := c.browse(ctx, podcastID, nil)
	if err != nil {
		if strings.Contains(podcastID, "UC") {
			return c.channelAsPodcast(ctx, podcastID)
		}
		return nil, err
	}

	header := navMap(result, "header", "musicResponsiveHeaderRenderer")
	detail := &PodcastDetail{
		PodcastID:   podcastID,
		Title:       firstRunText(navMap(header, "title")),
		Author:      firstRunText(navMap(header, "straplineTextOne")),
		Description: runsText(header, "description", "musicDescriptionShelfRenderer", "description"),
		Thumbnail:   lastThumbnail(header, "thumbnail", "musicThumbnailRenderer", "thumbnail"),
		Episodes:    []Episode{},
		Type:        "podcast",
	}
	if detail.Title == "" {
		detail.Title = "Unknown Podcast"
	}

	for _, entry := range episodeShelfContents(result) {
		if ep := parseEpisodeEntry(entry, detail.Title); ep.VideoID != "" {
			detail.Episodes = append(detail.Episodes, ep)
		}
	}
	return detail, nil
}

// GetChannel fetches basic channel info.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	result, err := c.browse(ctx, channelID, nil)
	if err != nil {
		return nil, err
	}
	header := navMap(result, "header", "musicImmersiveHeaderRenderer")
	if header == nil {
		header = navMap(result, "header", "musicVisualHeaderRenderer")
	}
	return &Channel{
		ChannelID: channelID,
		Title:     firstRunText(navMap(header, "title")),
		Thumbnail: lastThumbnail(header, "thumbnail", "musicThumbnailRenderer", "thumbnail"),
		Type:      "channel",
	}, nil
}

// GetChannelEpisodes returns one page of a channel's episodes. Pass the
// continuation token from the previous page to fetch the next one.
func (c *Client) GetChannelEpisodes(ctx context.Context, channelID, continuation string) (*ChannelEpisodesPage, error) {
	var result map[string]interface{}
	var err error
	if continuation != "" {
		result, err = c.browse(ctx, channelID, map[string]interface{}{
			"params": continuation,
		})
	} else {
		result, err = c.browse(ctx, channelID, nil)
	}
	if err != nil {
		return nil, err
	}

	title := firstRunText(navMap(result, "header", "musicImmersiveHeaderRenderer", "title"))
	page := &ChannelEpisodesPage{Episodes: []Episode{}}
	var next string

	for _, tab := range navSlice(result, "contents", "singleColumnBrowseResultsRenderer", "tabs") {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			shelf := navMap(section, "musicShelfRenderer")
			if shelf == nil {
				continue
			}
			shelfTitle := firstRunText(navMap(shelf, "title"))
			if shelfTitle != "" && !strings.Contains(strings.ToLower(shelfTitle), "episode") {
				continue
			}
			for _, entry := range navSlice(shelf, "contents") {
				if ep := parseEpisodeEntry(entry, title); ep.VideoID != "" {
					page.Episodes = append(page.Episodes, ep)
				}
			}
			if more := navString(shelf, "bottomEndpoint", "browseEndpoint", "params"); more != "" {
				next = more
			}
		}
	}

	page.Continuation = next
	page.HasMore = next != ""
	return page, nil
}

// GetLibraryPodcasts lists the account's podcast subscriptions. Requires
// upstream authentication.
func (c *Client) GetLibraryPodcasts(ctx context.Context) ([]Podcast, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	result, err := c.browse(ctx, "FEmusic_library_non_music_audio_list", nil)
	if err != nil {
		return nil, err
	}

	podcasts := make([]Podcast, 0, 16)
	for _, item := range gridItems(result) {
		renderer := navMap(item, "musicTwoRowItemRenderer")
		if renderer == nil {
			continue
		}
		browseID := navString(renderer, "navigationEndpoint", "browseEndpoint", "browseId")
		// Skip the synthetic "New episodes" style entries that have no
		// backing show.
		if browseID == "" || strings.HasPrefix(browseID, "FE") {
			continue
		}
		podcasts = append(podcasts, Podcast{
			PodcastID: browseID,
			Title:     firstRunText(navMap(renderer, "title")),
			Author:    firstRunText(navMap(renderer, "subtitle")),
			Thumbnail: lastThumbnail(renderer, "thumbnailRenderer", "musicThumbnailRenderer", "thumbnail"),
			Type:      "podcast",
		})
	}
	return podcasts, nil
}

// GetLibraryChannels lists subscribed channels. Requires upstream
// authentication.
func (c *Client) GetLibraryChannels(ctx context.Context) ([]Channel, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	result, err := c.browse(ctx, "FEmusic_library_corpus_artists", nil)
	if err != nil {
		return nil, err
	}

	channels := make([]Channel, 0, 16)
	for _, tab := range navSlice(result, "contents", "singleColumnBrowseResultsRenderer", "tabs") {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			for _, entry := range navSlice(section, "musicShelfRenderer", "contents") {
				item := navMap(entry, "musicResponsiveListItemRenderer")
				if item == nil {
					continue
				}
				browseID := itemBrowseID(item)
				if browseID == "" {
					continue
				}
				channels = append(channels, Channel{
					ChannelID: browseID,
					Title:     firstRunText(flexColumnText(item, 0)),
					Thumbnail: musicThumbnail(item),
					Type:      "channel",
				})
			}
		}
	}
	return channels, nil
}

func (c *Client) channelAsPodcast(ctx context.Context, channelID string) (*PodcastDetail, error) {
	channel, err := c.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	page, err := c.GetChannelEpisodes(ctx, channelID, "")
	if err != nil {
		return nil, err
	}
	title := channel.Title
	if title == "" {
		title = "Unknown Channel"
	}
	return &PodcastDetail{
		PodcastID: channelID,
		Title:     title,
		Author:    title,
		Thumbnail: channel.Thumbnail,
		Episodes:  page.Episodes,
		Type:      "channel",
	}, nil
}

// episodeShelfContents finds the episode list on a podcast page.
func episodeShelfContents(result map[string]interface{}) []interface{} {
	sections := navSlice(result, "contents", "twoColumnBrowseResultsRenderer", "secondaryContents", "sectionListRenderer", "contents")
	for _, section := range sections {
		if contents := navSlice(section, "musicShelfRenderer", "contents"); contents != nil {
			return contents
		}
	}
	for _, tab := range navSlice(result, "contents", "singleColumnBrowseResultsRenderer", "tabs") {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			if contents := navSlice(section, "musicShelfRenderer", "contents"); contents != nil {
				return contents
			}
		}
	}
	return nil
}

// parseEpisodeEntry handles both renderer shapes episode lists use.
func parseEpisodeEntry(entry interface{}, showTitle string) Episode {
	if item := navMap(entry, "musicMultiRowListItemRenderer"); item != nil {
		videoID := navString(item, "onTap", "watchEndpoint", "videoId")
		ep := Episode{
			VideoID:     videoID,
			Title:       firstRunText(navMap(item, "title")),
			Artist:      showTitle,
			Thumbnail:   lastThumbnail(item, "thumbnail", "musicThumbnailRenderer", "thumbnail"),
			Date:        firstRunText(navMap(item, "subtitle")),
			Description: runsText(item, "description"),
			Type:        "episode",
		}
		return ep
	}
	if item := navMap(entry, "musicResponsiveListItemRenderer"); item != nil {
		ep := parseEpisodeItem(item)
		if ep.Artist == "" {
			ep.Artist = showTitle
		}
		return ep
	}
	return Episode{}
}
