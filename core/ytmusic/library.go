package ytmusic

import (
	"context"
	"fmt"
	"strings"
)

// GetLibraryPlaylists lists the account's playlists. Requires upstream
// authentication.
func (c *Client) GetLibraryPlaylists(ctx context.Context) ([]Playlist, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	result, err := c.browse(ctx, "FEmusic_liked_playlists", nil)
	if err != nil {
		return nil, err
	}

	playlists := make([]Playlist, 0, 16)
	for _, item := range gridItems(result) {
		renderer := navMap(item, "musicTwoRowItemRenderer")
		if renderer == nil {
			continue
		}
		browseID := navString(renderer, "navigationEndpoint", "browseEndpoint", "browseId")
		// The grid leads with the "New playlist" action and the liked
		// songs auto playlist, which are not real library playlists.
		if !strings.HasPrefix(browseID, "VL") || browseID == "VLLM" {
			continue
		}
		playlists = append(playlists, Playlist{
			PlaylistID: strings.TrimPrefix(browseID, "VL"),
			Title:      firstRunText(navMap(renderer, "title")),
			Thumbnail:  lastThumbnail(renderer, "thumbnailRenderer", "musicThumbnailRenderer", "thumbnail"),
			TrackCount: parseInt(runsText(renderer, "subtitle")),
		})
	}
	return playlists, nil
}

// GetLikedSongs returns the liked-songs auto playlist. Requires upstream
// authentication.
func (c *Client) GetLikedSongs(ctx context.Context) (*LikedSongs, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	detail, err := c.GetPlaylist(ctx, "LM")
	if err != nil {
		return nil, err
	}
	return &LikedSongs{
		Title:      "Liked songs",
		TrackCount: detail.TrackCount,
		Tracks:     detail.Tracks,
	}, nil
}

// GetPlaylist fetches a playlist with its tracks. Works without
// credentials for public playlists.
func (c *Client) GetPlaylist(ctx context.Context, playlistID string) (*PlaylistDetail, error) {
	browseID := playlistID
	if !strings.HasPrefix(browseID, "VL") {
		browseID = "VL" + browseID
	}
	result, err := c.browse(ctx, browseID, nil)
	if err != nil {
		return nil, err
	}

	header := playlistHeader(result)
	detail := &PlaylistDetail{
		PlaylistID:  strings.TrimPrefix(browseID, "VL"),
		Title:       firstRunText(navMap(header, "title")),
		Description: runsText(header, "description"),
		Thumbnail:   lastThumbnail(header, "thumbnail", "croppedSquareThumbnailRenderer", "thumbnail"),
	}
	if detail.Title == "" {
		detail.Title = "Unknown Playlist"
	}

	for _, entry := range playlistContents(result) {
		item := navMap(entry, "musicResponsiveListItemRenderer")
		if item == nil {
			continue
		}
		if s := parseSongItem(item); s.VideoID != "" {
			detail.Tracks = append(detail.Tracks, s)
		}
	}
	detail.TrackCount = len(detail.Tracks)
	return detail, nil
}

// CreatePlaylist creates a playlist and returns its ID. privacy is
// PRIVATE, PUBLIC or UNLISTED.
func (c *Client) CreatePlaylist(ctx context.Context, title, description, privacy string) (string, error) {
	if err := c.requireAuth(); err != nil {
		return "", err
	}
	if privacy == "" {
		privacy = "PRIVATE"
	}

	result, err := c.call(ctx, "playlist/create", map[string]interface{}{
		"title":         title,
		"description":   description,
		"privacyStatus": privacy,
	})
	if err != nil {
		return "", err
	}

	playlistID := navString(result, "playlistId")
	if playlistID == "" {
		return "", fmt.Errorf("playlist creation returned no ID")
	}
	return playlistID, nil
}

// AddPlaylistItem appends a track to a playlist.
func (c *Client) AddPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	result, err := c.call(ctx, "browse/edit_playlist", map[string]interface{}{
		"playlistId": strings.TrimPrefix(playlistID, "VL"),
		"actions": []map[string]interface{}{{
			"action":       "ACTION_ADD_VIDEO",
			"addedVideoId": videoID,
		}},
	})
	if err != nil {
		return err
	}
	if status := navString(result, "status"); status != "STATUS_SUCCEEDED" {
		return fmt.Errorf("add to playlist failed with status %q", status)
	}
	return nil
}

// RemovePlaylistItem removes a track from a playlist. setVideoID is the
// per-entry token the API requires; when empty it is resolved by reading
// the playlist.
func (c *Client) RemovePlaylistItem(ctx context.Context, playlistID, videoID, setVideoID string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	if setVideoID == "" {
		resolved, err := c.findSetVideoID(ctx, playlistID, videoID)
		if err != nil {
			return err
		}
		setVideoID = resolved
	}

	result, err := c.call(ctx, "browse/edit_playlist", map[string]interface{}{
		"playlistId": strings.TrimPrefix(playlistID, "VL"),
		"actions": []map[string]interface{}{{
			"action":         "ACTION_REMOVE_VIDEO",
			"removedVideoId": videoID,
			"setVideoId":     setVideoID,
		}},
	})
	if err != nil {
		return err
	}
	if status := navString(result, "status"); status != "STATUS_SUCCEEDED" {
		return fmt.Errorf("remove from playlist failed with status %q", status)
	}
	return nil
}

// DeletePlaylist deletes a playlist owned by the account.
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	_, err := c.call(ctx, "playlist/delete", map[string]interface{}{
		"playlistId": strings.TrimPrefix(playlistID, "VL"),
	})
	return err
}

func (c *Client) findSetVideoID(ctx context.Context, playlistID, videoID string) (string, error) {
	browseID := playlistID
	if !strings.HasPrefix(browseID, "VL") {
		browseID = "VL" + browseID
	}
	result, err := c.browse(ctx, browseID, nil)
	if err != nil {
		return "", err
	}
	for _, entry := range playlistContents(result) {
		item := navMap(entry, "musicResponsiveListItemRenderer")
		if item == nil {
			continue
		}
		if navString(item, "playlistItemData", "videoId") == videoID {
			if setID := navString(item, "playlistItemData", "playlistSetVideoId"); setID != "" {
				return setID, nil
			}
		}
	}
	return "", fmt.Errorf("track %s not found in playlist %s", videoID, playlistID)
}

// gridItems extracts the grid of a single-column library browse page.
func gridItems(result map[string]interface{}) []interface{} {
	tabs := navSlice(result, "contents", "singleColumnBrowseResultsRenderer", "tabs")
	for _, tab := range tabs {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			if items := navSlice(section, "gridRenderer", "items"); items != nil {
				return items
			}
		}
	}
	return nil
}

// playlistHeader handles both header placements the API uses.
func playlistHeader(result map[string]interface{}) map[string]interface{} {
	if h := navMap(result, "header", "musicDetailHeaderRenderer"); h != nil {
		return h
	}
	if h := navMap(result, "header", "musicEditablePlaylistDetailHeaderRenderer", "header", "musicDetailHeaderRenderer"); h != nil {
		return h
	}
	return navMap(result, "header", "musicResponsiveHeaderRenderer")
}

func playlistContents(result map[string]interface{}) []interface{} {
	tabs := navSlice(result, "contents", "singleColumnBrowseResultsRenderer", "tabs")
	for _, tab := range tabs {
		sections := navSlice(tab, "tabRenderer", "content", "sectionListRenderer", "contents")
		for _, section := range sections {
			if contents := navSlice(section, "musicPlaylistShelfRenderer", "contents"); contents != nil {
				return contents
			}
			if contents := navSlice(section, "musicShelfRenderer", "contents"); contents != nil {
				return contents
			}
		}
	}
	// Newer responses put the shelf under twoColumnBrowseResultsRenderer.
	sections := navSlice(result, "contents", "twoColumnBrowseResultsRenderer", "secondaryContents", "sectionListRenderer", "contents")
	for _, section := range sections {
		if contents := navSlice(section, "musicPlaylistShelfRenderer", "contents"); contents != nil {
			return contents
		}
	}
	return nil
}
