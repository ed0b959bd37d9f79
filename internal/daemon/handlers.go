package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"deepshield/internal/api"
	"deepshield/internal/auth"
	"deepshield/internal/posts"
	"deepshield/internal/services"
	"deepshield/internal/store"
)

const (
	maxJSONBody = 1 << 20
	// Form fields beyond the media file itself.
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

// accountInputStatus is returned for malformed signup and signin input.
const accountInputStatus = http.StatusLengthRequired

const accountInputMessage = "Email already taken / Incorrect inputs"

type signupBody struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type signinBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type commentBody struct {
	Content string `json:"content"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *apiServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, accountInputStatus, accountInputMessage)
		return
	}
	session, err := s.daemon.auth.Signup(r.Context(), auth.SignupRequest{
		Username:  body.Username,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Password:  body.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConflict) {
			s.writeError(w, accountInputStatus, services.Reason(err))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SignupResponse{Message: "User created successfully", Token: session.Token})
}

func (s *apiServer) handleSignin(w http.ResponseWriter, r *http.Request) {
	var body signinBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, accountInputStatus, accountInputMessage)
		return
	}
	session, err := s.daemon.auth.Signin(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, accountInputStatus, services.Reason(err))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSigninSession(session))
}

func (s *apiServer) handleListPosts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, err := s.daemon.reads.ListFiltered(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

// listOptions reads the optional status and limit filters.
func listOptions(r *http.Request) (store.ListOptions, error) {
	var opts store.ListOptions
	query := r.URL.Query()
	for _, value := range query["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := store.ParseStatus(trimmed)
		if !ok {
			return opts, services.Wrap(services.ErrValidation, "api", "list", "Unknown analysis status "+strconv.Quote(trimmed), nil)
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, services.Wrap(services.ErrValidation, "api", "list", "limit must be a non-negative integer", err)
		}
		opts.Limit = limit
	}
	return opts, nil
}

func (s *apiServer) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	userID, _ := services.UserIDFromContext(r.Context())
	items, err := s.daemon.reads.ListByCreator(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *apiServer) handleGetPost(w http.ResponseWriter, r *http.Request) {
	detail, err := s.daemon.reads.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleGetSecondary(w http.ResponseWriter, r *http.Request) {
	record, err := s.daemon.reads.Secondary(r.Context(), r.PathValue("postId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *apiServer) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	upload, closer, err := formUpload(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid media file")
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	creatorID, _ := services.UserIDFromContext(r.Context())
	post, err := s.daemon.posts.Create(r.Context(), posts.CreateRequest{
		Title:     r.FormValue("title"),
		Content:   r.FormValue("content"),
		CreatorID: creatorID,
		Media:     upload,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromPostDetail(post, nil, nil))
}

// formUpload returns the first media part, preferring "image" over "video".
// A request without either field yields a nil upload.
func formUpload(r *http.Request) (*posts.Upload, io.Closer, error) {
	for _, field := range []struct {
		name string
		kind store.MediaType
	}{
		{"image", store.MediaImage},
		{"video", store.MediaVideo},
	} {
		file, header, err := r.FormFile(field.name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return &posts.Upload{
			Kind:        field.kind,
			Filename:    header.Filename,
			ContentType: partContentType(header),
			Body:        file,
		}, file, nil
	}
	return nil, nil, nil
}

func partContentType(header *multipart.FileHeader) string {
	return strings.TrimSpace(header.Header.Get("Content-Type"))
}

func (s *apiServer) handlePostAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := r.PathValue("action")
	switch {
	case id == "analyze":
		s.handleReanalyze(w, r, action)
	case id == "analyze-old-model":
		s.handleRunSecondary(w, r, action)
	case action == "like":
		s.handleLike(w, r, id)
	case action == "comments":
		s.handleComment(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *apiServer) handleReanalyze(w http.ResponseWriter, r *http.Request, postID string) {
	post, err := s.daemon.workflow.Reanalyze(services.WithPostID(r.Context(), postID), postID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromPost(post))
}

func (s *apiServer) handleRunSecondary(w http.ResponseWriter, r *http.Request, postID string) {
	record, err := s.daemon.workflow.RunSecondary(services.WithPostID(r.Context(), postID), postID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSecondary(record))
}

func (s *apiServer) handleLike(w http.ResponseWriter, r *http.Request, postID string) {
	userID, _ := services.UserIDFromContext(r.Context())
	likes, err := s.daemon.posts.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LikeResponse{Likes: likes})
}

func (s *apiServer) handleComment(w http.ResponseWriter, r *http.Request, postID string) {
	var body commentBody
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, _ := services.UserIDFromContext(r.Context())
	comment, err := s.daemon.posts.AddComment(r.Context(), postID, userID, body.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromComment(comment))
}

// mediaFileServer serves uploaded files without directory listings.
func mediaFileServer(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
