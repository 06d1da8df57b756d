package ytmusic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"EchoFM/core/auth"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil, 100)
}

func newAuthedTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := auth.NewCredentialStore(filepath.Join(t.TempDir(), "browser.json"))
	if _, err := store.Save("SAPISID=abc; HSID=def"); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
	return NewClient(srv.URL, store, 100)
}

func songItem(videoID, title, artist, duration string) map[string]interface{} {
	return map[string]interface{}{
		"musicResponsiveListItemRenderer": map[string]interface{}{
			"playlistItemData": map[string]interface{}{"videoId": videoID},
			"thumbnail": map[string]interface{}{
				"musicThumbnailRenderer": map[string]interface{}{
					"thumbnail": map[string]interface{}{
						"thumbnails": []interface{}{
							map[string]interface{}{"url": "https://img.example/small"},
							map[string]interface{}{"url": "https://img.example/large"},
						},
					},
				},
			},
			"flexColumns": []interface{}{
				map[string]interface{}{
					"musicResponsiveListItemFlexColumnRenderer": map[string]interface{}{
						"text": map[string]interface{}{
							"runs": []interface{}{map[string]interface{}{"text": title}},
						},
					},
				},
				map[string]interface{}{
					"musicResponsiveListItemFlexColumnRenderer": map[string]interface{}{
						"text": map[string]interface{}{
							"runs": []interface{}{
								map[string]interface{}{"text": artist},
								map[string]interface{}{"text": " • "},
								map[string]interface{}{"text": duration},
							},
						},
					},
				},
			},
		},
	}
}

func searchResponse(items ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"contents": map[string]interface{}{
			"tabbedSearchResultsRenderer": map[string]interface{}{
				"tabs": []interface{}{
					map[string]interface{}{
						"tabRenderer": map[string]interface{}{
							"content": map[string]interface{}{
								"sectionListRenderer": map[string]interface{}{
									"contents": []interface{}{
										map[string]interface{}{
											"musicShelfRenderer": map[string]interface{}{
												"contents": items,
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestSearchSongsParsesShelfItems(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtubei/v1/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(searchResponse(
			songItem("vid1", "First Song", "Artist A", "3:45"),
			songItem("vid2", "Second Song", "Artist B", "1:02:10"),
		))
	})

	songs, err := client.SearchSongs(context.Background(), "test query", 20)
	if err != nil {
		t.Fatalf("SearchSongs: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("got %d songs, want 2", len(songs))
	}

	first := songs[0]
	if first.VideoID != "vid1" || first.Title != "First Song" || first.Artist != "Artist A" {
		t.Fatalf("first song = %+v", first)
	}
	if first.Thumbnail != "https://img.example/large" {
		t.Fatalf("thumbnail = %q, want the largest variant", first.Thumbnail)
	}
	if first.DurationSeconds != 225 {
		t.Fatalf("duration seconds = %d, want 225", first.DurationSeconds)
	}
	if songs[1].DurationSeconds != 3730 {
		t.Fatalf("h:mm:ss duration = %d, want 3730", songs[1].DurationSeconds)
	}

	if gotBody["query"] != "test query" {
		t.Fatalf("request query = %v", gotBody["query"])
	}
	if gotBody["params"] != searchParamsSongs {
		t.Fatalf("request params = %v", gotBody["params"])
	}
	if _, ok := gotBody["context"]; !ok {
		t.Fatal("request body is missing the client context")
	}
}

func TestSearchSongsHonorsLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		items := make([]interface{}, 0, 10)
		for i := 0; i < 10; i++ {
			items = append(items, songItem("vid", "Song", "Artist", "3:00"))
		}
		json.NewEncoder(w).Encode(searchResponse(items...))
	})

	songs, err := client.SearchSongs(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("SearchSongs: %v", err)
	}
	if len(songs) != 3 {
		t.Fatalf("got %d songs, want 3", len(songs))
	}
}

func TestSearchByGenreAppendsMusicKeyword(t *testing.T) {
	var query string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		query, _ = body["query"].(string)
		json.NewEncoder(w).Encode(searchResponse())
	})

	if _, err := client.SearchByGenre(context.Background(), "jazz", 5); err != nil {
		t.Fatalf("SearchByGenre: %v", err)
	}
	if query != "jazz music" {
		t.Fatalf("query = %q", query)
	}
}

func TestGetHomeFallsBackToSearch(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/youtubei/v1/browse" {
			// Empty home feed.
			json.NewEncoder(w).Encode(map[string]interface{}{})
			return
		}
		json.NewEncoder(w).Encode(searchResponse(
			songItem("fallback", "Chart Song", "Artist", "3:00"),
		))
	})

	songs, err := client.GetHome(context.Background())
	if err != nil {
		t.Fatalf("GetHome: %v", err)
	}
	if len(songs) != 1 || songs[0].VideoID != "fallback" {
		t.Fatalf("songs = %+v", songs)
	}
	if len(paths) != 2 || paths[0] != "/youtubei/v1/browse" || paths[1] != "/youtubei/v1/search" {
		t.Fatalf("request paths = %v", paths)
	}
}

func TestGetSongInfoReadsVideoDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"videoDetails": map[string]interface{}{
				"title":         "A Song",
				"author":        "An Artist",
				"lengthSeconds": "241",
			},
		})
	})

	song, err := client.GetSongInfo(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("GetSongInfo: %v", err)
	}
	if song == nil || song.Title != "A Song" || song.Artist != "An Artist" || song.DurationSeconds != 241 {
		t.Fatalf("song = %+v", song)
	}
}

func TestGetSongInfoReturnsNilWhenUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"playabilityStatus": map[string]interface{}{"status": "ERROR"},
		})
	})

	song, err := client.GetSongInfo(context.Background(), "gone")
	if err != nil {
		t.Fatalf("GetSongInfo: %v", err)
	}
	if song != nil {
		t.Fatalf("expected nil song, got %+v", song)
	}
}

func TestLibraryOperationsRequireAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unauthenticated library call must not reach upstream")
	})

	if _, err := client.GetLibraryPlaylists(context.Background()); err != ErrAuthRequired {
		t.Fatalf("GetLibraryPlaylists err = %v", err)
	}
	if _, err := client.GetLikedSongs(context.Background()); err != ErrAuthRequired {
		t.Fatalf("GetLikedSongs err = %v", err)
	}
	if _, err := client.CreatePlaylist(context.Background(), "t", "", ""); err != ErrAuthRequired {
		t.Fatalf("CreatePlaylist err = %v", err)
	}
	if err := client.AddPlaylistItem(context.Background(), "pl", "vid"); err != ErrAuthRequired {
		t.Fatalf("AddPlaylistItem err = %v", err)
	}
	if err := client.DeletePlaylist(context.Background(), "pl"); err != ErrAuthRequired {
		t.Fatalf("DeletePlaylist err = %v", err)
	}
}

func TestGetLibraryPlaylistsFiltersSyntheticEntries(t *testing.T) {
	client := newAuthedTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contents": map[string]interface{}{
				"singleColumnBrowseResultsRenderer": map[string]interface{}{
					"tabs": []interface{}{
						map[string]interface{}{
							"tabRenderer": map[string]interface{}{
								"content": map[string]interface{}{
									"sectionListRenderer": map[string]interface{}{
										"contents": []interface{}{
											map[string]interface{}{
												"gridRenderer": map[string]interface{}{
													"items": []interface{}{
														gridPlaylist("FEmusic_playlist_new", "New playlist", ""),
														gridPlaylist("VLLM", "Liked songs", ""),
														gridPlaylist("VLPL123", "Road Trip", "42 tracks"),
													},
												},
											},
										},
									},
								},
							},
						},
					},
				},
			},
		})
	})

	playlists, err := client.GetLibraryPlaylists(context.Background())
	if err != nil {
		t.Fatalf("GetLibraryPlaylists: %v", err)
	}
	if len(playlists) != 1 {
		t.Fatalf("got %d playlists, want 1: %+v", len(playlists), playlists)
	}
	p := playlists[0]
	if p.PlaylistID != "PL123" || p.Title != "Road Trip" || p.TrackCount != 42 {
		t.Fatalf("playlist = %+v", p)
	}
}

func gridPlaylist(browseID, title, subtitle string) map[string]interface{} {
	renderer := map[string]interface{}{
		"title": map[string]interface{}{
			"runs": []interface{}{map[string]interface{}{"text": title}},
		},
		"navigationEndpoint": map[string]interface{}{
			"browseEndpoint": map[string]interface{}{"browseId": browseID},
		},
	}
	if subtitle != "" {
		renderer["subtitle"] = map[string]interface{}{
			"runs": []interface{}{map[string]interface{}{"text": subtitle}},
		}
	}
	return map[string]interface{}{"musicTwoRowItemRenderer": renderer}
}

func TestRemovePlaylistItemResolvesSetVideoID(t *testing.T) {
	var bodies []map[string]interface{}
	client := newAuthedTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)

		if _, isBrowse := body["browseId"]; isBrowse {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"contents": map[string]interface{}{
					"singleColumnBrowseResultsRenderer": map[string]interface{}{
						"tabs": []interface{}{
							map[string]interface{}{
								"tabRenderer": map[string]interface{}{
									"content": map[string]interface{}{
										"sectionListRenderer": map[string]interface{}{
											"contents": []interface{}{
												map[string]interface{}{
													"musicPlaylistShelfRenderer": map[string]interface{}{
														"contents": []interface{}{
															map[string]interface{}{
																"musicResponsiveListItemRenderer": map[string]interface{}{
																	"playlistItemData": map[string]interface{}{
																		"videoId":            "vid1",
																		"playlistSetVideoId": "set123",
																	},
																},
															},
														},
													},
												},
											},
										},
									},
								},
							},
						},
					},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "STATUS_SUCCEEDED"})
	})

	if err := client.RemovePlaylistItem(context.Background(), "PL123", "vid1", ""); err != nil {
		t.Fatalf("RemovePlaylistItem: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("got %d requests, want browse then edit", len(bodies))
	}

	edit := bodies[1]
	actions, _ := edit["actions"].([]interface{})
	if len(actions) != 1 {
		t.Fatalf("actions = %v", edit["actions"])
	}
	action, _ := actions[0].(map[string]interface{})
	if action["setVideoId"] != "set123" {
		t.Fatalf("setVideoId = %v", action["setVideoId"])
	}
	if action["removedVideoId"] != "vid1" {
		t.Fatalf("removedVideoId = %v", action["removedVideoId"])
	}
}

func TestCreatePlaylistReturnsID(t *testing.T) {
	client := newAuthedTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["privacyStatus"] != "PRIVATE" {
			t.Errorf("privacyStatus = %v, want default PRIVATE", body["privacyStatus"])
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"playlistId": "PLnew"})
	})

	id, err := client.CreatePlaylist(context.Background(), "My List", "", "")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if id != "PLnew" {
		t.Fatalf("playlist id = %q", id)
	}
}

func TestDurationToSeconds(t *testing.T) {
	cases := map[string]int{
		"":        0,
		"0:42":    42,
		"3:45":    225,
		"1:02:10": 3730,
	}
	for in, want := range cases {
		if got := durationToSeconds(in); got != want {
			t.Errorf("durationToSeconds(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRequestsCarryCredentials(t *testing.T) {
	var authHeader, cookie string
	client := newAuthedTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		cookie = r.Header.Get("Cookie")
		json.NewEncoder(w).Encode(searchResponse())
	})

	if _, err := client.SearchSongs(context.Background(), "q", 5); err != nil {
		t.Fatalf("SearchSongs: %v", err)
	}
	if cookie != "SAPISID=abc; HSID=def" {
		t.Fatalf("cookie = %q", cookie)
	}
	if len(authHeader) == 0 || authHeader[:12] != "SAPISIDHASH " {
		t.Fatalf("authorization = %q", authHeader)
	}
}
