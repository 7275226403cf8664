// Command stub-github serves canned GitHub REST responses for local runs of
// ghdash without a token or network access. Point GHDASH_GITHUB_BASE_URL at it.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	flag.Parse()

	r := chi.NewRouter()
	r.Use(chimw.Logger)

	r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.Atoi(r.URL.Query().Get("since"))
		perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
		if err != nil || perPage <= 0 {
			perPage = 30
		}
		users := make([]map[string]any, 0, perPage)
		for i := 1; i <= perPage; i++ {
			id := since + i
			users = append(users, map[string]any{"id": id, "login": fmt.Sprintf("user%d", id)})
		}
		writeJSON(w, http.StatusOK, users)
	})

	r.Get("/users/{user}", func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		if user == "ghost-missing" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"login":        user,
			"id":           1,
			"public_repos": 2,
			"followers":    10,
		})
	})

	r.Get("/users/{user}/repos", func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		writeJSON(w, http.StatusOK, []map[string]any{
			{"name": "hello-world", "full_name": user + "/hello-world", "stargazers_count": 42},
			{"name": "spoon-knife", "full_name": user + "/spoon-knife", "stargazers_count": 7},
		})
	})

	r.Get("/users/{user}/events", func(w http.ResponseWriter, r *http.Request) {
		user := chi.URLParam(r, "user")
		writeJSON(w, http.StatusOK, []map[string]any{
			{
				"type":    "PushEvent",
				"repo":    map[string]string{"name": user + "/hello-world"},
				"payload": map[string]any{"commits": []map[string]string{{"sha": "a1"}, {"sha": "b2"}}},
			},
			{
				"type":    "PullRequestEvent",
				"repo":    map[string]string{"name": user + "/hello-world"},
				"payload": map[string]any{"action": "opened"},
			},
			{
				"type":    "IssuesEvent",
				"repo":    map[string]string{"name": user + "/spoon-knife"},
				"payload": map[string]any{"action": "closed"},
			},
		})
	})

	r.Get("/repos/{owner}/{repo}/commits", func(w http.ResponseWriter, r *http.Request) {
		author := r.URL.Query().Get("author")
		if author == "" {
			author = chi.URLParam(r, "owner")
		}
		writeJSON(w, http.StatusOK, []map[string]any{
			{"sha": "a1", "commit": map[string]any{"message": "initial commit", "author": map[string]string{"name": author}}},
		})
	})

	log.Printf("stub-github listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, r))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
