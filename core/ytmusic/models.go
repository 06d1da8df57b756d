package ytmusic

// Song is a playable track as the frontend consumes it.
type Song struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Duration        string `json:"duration,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	Type            string `json:"type"`
}

// Podcast is a show returned by podcast search or the library.
type Podcast struct {
	PodcastID string `json:"podcastId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Type      string `json:"type"`
}

// Episode is a single podcast episode.
type Episode struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Duration        string `json:"duration,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	Date            string `json:"date,omitempty"`
	Description     string `json:"description,omitempty"`
	Type            string `json:"type"`
}

// PodcastDetail is a show plus its episode list.
type PodcastDetail struct {
	PodcastID   string    `json:"podcastId"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Episodes    []Episode `json:"episodes"`
	Type        string    `json:"type"`
}

// Playlist is a library playlist summary.
type Playlist struct {
	PlaylistID string `json:"playlistId"`
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	TrackCount int    `json:"trackCount"`
}

// PlaylistDetail is a playlist with its tracks resolved.
type PlaylistDetail struct {
	PlaylistID  string `json:"playlistId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TrackCount  int    `json:"trackCount"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Tracks      []Song `json:"tracks"`
}

// LikedSongs is the liked-songs auto playlist.
type LikedSongs struct {
	Title      string `json:"title"`
	TrackCount int    `json:"trackCount"`
	Tracks     []Song `json:"tracks"`
}

// Channel is a subscribed channel from the library.
type Channel struct {
	ChannelID string `json:"channelId"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Type      string `json:"type"`
}

// ChannelEpisodesPage is one page of channel episodes with its
// continuation token.
type ChannelEpisodesPage struct {
	Episodes     []Episode `json:"episodes"`
	Continuation string    `json:"continuation,omitempty"`
	HasMore      bool      `json:"hasMore"`
}
