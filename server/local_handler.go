package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zip"

	"EchoFM/logger"
)

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".opus": "audio/opus",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
}

// localPath resolves a playlist (and optional file) inside the data
// directory, rejecting traversal attempts.
func (h *APIHandler) localPath(parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" || p != filepath.Base(p) || strings.HasPrefix(p, ".") {
			return "", fmt.Errorf("invalid path component %q", p)
		}
	}
	return filepath.Join(append([]string{h.cfg.DataDir}, parts...)...), nil
}

// LocalPlaylistsHandler handles GET /api/local/playlists.
func (h *APIHandler) LocalPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			respondWithJSON(w, http.StatusOK, map[string]interface{}{"playlists": []interface{}{}})
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	playlists := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") || strings.HasPrefix(entry.Name(), ".") {
			// _cache and userdata live alongside the playlist folders.
			continue
		}
		count, total := h.folderStats(filepath.Join(h.cfg.DataDir, entry.Name()))
		playlists = append(playlists, map[string]interface{}{
			"name":               entry.Name(),
			"folder":             filepath.Join(h.cfg.DataDir, entry.Name()),
			"trackCount":         count,
			"totalSize":          total,
			"totalSizeFormatted": humanize.Bytes(uint64(total)),
		})
	}
	sort.Slice(playlists, func(i, j int) bool {
		return strings.ToLower(playlists[i]["name"].(string)) < strings.ToLower(playlists[j]["name"].(string))
	})

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"playlists": playlists})
}

func (h *APIHandler) folderStats(dir string) (count int, total int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		if info, err := entry.Info(); err == nil {
			count++
			total += info.Size()
		}
	}
	return count, total
}

// LocalPlaylistHandler handles GET /api/local/playlist/{playlist_name}.
func (h *APIHandler) LocalPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["playlist_name"]
	dir, err := h.localPath(name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	tracks := make([]map[string]interface{}, 0, len(entries))
	var total int64
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() {
			continue
		}
		if _, ok := audioExtensions[ext]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		tracks = append(tracks, map[string]interface{}{
			"filename":      entry.Name(),
			"title":         strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			"size":          info.Size(),
			"sizeFormatted": humanize.Bytes(uint64(info.Size())),
			"path":          filepath.Join(dir, entry.Name()),
			"extension":     ext,
		})
	}
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i]["filename"].(string) < tracks[j]["filename"].(string)
	})

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"name":               name,
		"folder":             dir,
		"tracks":             tracks,
		"trackCount":         len(tracks),
		"totalSize":          total,
		"totalSizeFormatted": humanize.Bytes(uint64(total)),
	})
}

// LocalStreamHandler handles GET /api/local/stream/{playlist_name}/{filename}.
func (h *APIHandler) LocalStreamHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, err := h.localPath(vars["playlist_name"], vars["filename"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}

// LocalDownloadHandler handles GET /api/local/download/{playlist_name}/{filename}.
func (h *APIHandler) LocalDownloadHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, err := h.localPath(vars["playlist_name"], vars["filename"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", vars["filename"]))
	http.ServeFile(w, r, path)
}

// LocalDownloadZipHandler handles GET /api/local/download-zip/{playlist_name},
// streaming the playlist folder as a ZIP archive.
func (h *APIHandler) LocalDownloadZipHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["playlist_name"]
	dir, err := h.localPath(name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))

	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		if err := addFileToZip(zw, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			// Headers are already sent, all we can do is log and stop.
			logger.Error("failed to write zip entry",
				logger.String("file", entry.Name()),
				logger.ErrorField(err))
			return
		}
	}
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Audio files are already compressed, store them as-is.
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

// LocalDeletePlaylistHandler handles DELETE /api/local/playlist/{playlist_name}.
func (h *APIHandler) LocalDeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["playlist_name"]
	dir, err := h.localPath(name)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		respondWithError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Playlist %q deleted", name),
	})
}

// LocalDeleteFileHandler handles DELETE /api/local/playlist/{playlist_name}/{filename}.
func (h *APIHandler) LocalDeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	path, err := h.localPath(vars["playlist_name"], vars["filename"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if info, err := os.Stat(path); err != nil || info.IsDir() {
		respondWithError(w, http.StatusNotFound, "File not found")
		return
	}
	if err := os.Remove(path); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("File %q deleted", vars["filename"]),
	})
}
