// Package apitest is a scripted stand-in for the clip generation service.
// Tests drive the real client against it; `clipstudio mock-server` serves it
// for local demos.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clipstudio/config"
	"clipstudio/types"
)

// ClipSubmission records one POST /api/generate-clip.
type ClipSubmission struct {
	ClipID        string
	Prompt        string
	Duration      int
	APIKey        string
	Multipart     bool
	ReferenceName string
	ReferenceSize int64
}

// Failure forces an endpoint to answer with an error.
type Failure struct {
	Status  int
	Message string // empty sends a body without an error field
}

type fakeClip struct {
	script []types.ClipStatusResponse
	polls  int
}

type fakeJob struct {
	request types.GenerateJobRequest
	script  []types.JobStatusResponse
	polls   int
}

// Server is the fake generation service. The zero value is not usable; call
// New.
type Server struct {
	mu sync.Mutex

	clipScript []types.ClipStatusResponse
	jobScript  []types.JobStatusResponse
	failures   map[string]Failure

	clips       map[string]*fakeClip
	jobs        map[string]*fakeJob
	submissions []ClipSubmission
	processed   []types.ProcessTextRequest
	generated   []types.GenerateJobRequest
	jobCounter  int

	engine *gin.Engine
}

// New builds a fake whose clips report generating once then completed, and
// whose jobs walk queued, processing, generating, completed.
func New() *Server {
	s := &Server{
		clipScript: []types.ClipStatusResponse{
			{Status: types.ClipGenerating},
			{Status: types.ClipCompleted},
		},
		jobScript: []types.JobStatusResponse{
			{Status: types.JobQueued},
			{Status: types.JobProcessing, Progress: 5},
			{Status: types.JobGenerating, Progress: 50, CurrentClip: 2, TotalClips: 3},
			{Status: types.JobCompleted, Progress: 100},
		},
		failures: make(map[string]Failure),
		clips:    make(map[string]*fakeClip),
		jobs:     make(map[string]*fakeJob),
	}
	s.engine = s.router()
	return s
}

// Handler returns the gin engine serving the fake API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves the fake on a loopback httptest server. Callers close it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.engine)
}

// ScriptClips sets the statuses each new clip reports on successive polls.
// The last entry repeats.
func (s *Server) ScriptClips(steps ...types.ClipStatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clipScript = append([]types.ClipStatusResponse(nil), steps...)
}

// ScriptJobs sets the statuses each new job reports on successive polls.
// The last entry repeats.
func (s *Server) ScriptJobs(steps ...types.JobStatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobScript = append([]types.JobStatusResponse(nil), steps...)
}

// Fail makes the named endpoint ("generate-clip", "clip-status",
// "process-text", "generate", "status") answer with f until cleared.
func (s *Server) Fail(endpoint string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = f
}

// ClearFailures removes every forced failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]Failure)
}

// Submissions returns every clip submission received.
func (s *Server) Submissions() []ClipSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ClipSubmission(nil), s.submissions...)
}

// StatusCalls returns how many times clipID has been polled.
func (s *Server) StatusCalls(clipID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clips[clipID]; ok {
		return c.polls
	}
	return 0
}

// TotalStatusCalls returns the number of clip status polls across all clips.
func (s *Server) TotalStatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.clips {
		n += c.polls
	}
	return n
}

// ProcessRequests returns every process-text body received.
func (s *Server) ProcessRequests() []types.ProcessTextRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ProcessTextRequest(nil), s.processed...)
}

// GenerateRequests returns every job body received.
func (s *Server) GenerateRequests() []types.GenerateJobRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.GenerateJobRequest(nil), s.generated...)
}

// JobPolls returns how many times jobID has been polled.
func (s *Server) JobPolls(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		return j.polls
	}
	return 0
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group("/api")
	g.POST("/generate-clip", s.handleGenerateClip)
	g.GET("/clip-status/:id", s.handleClipStatus)
	g.GET("/preview-clip/:id", s.handleClipVideo)
	g.GET("/download-clip/:id", s.handleClipVideo)
	g.POST("/process-text", s.handleProcessText)
	g.POST("/generate", s.handleGenerate)
	g.GET("/status/:id", s.handleJobStatus)
	g.GET("/preview/:id", s.handleJobVideo)
	g.GET("/download/:id", s.handleJobVideo)
	return r
}

// failure returns the forced failure for endpoint, if any. Callers hold mu.
func (s *Server) failure(c *gin.Context, endpoint string) bool {
	f, ok := s.failures[endpoint]
	if !ok {
		return false
	}
	if f.Message == "" {
		c.JSON(f.Status, gin.H{})
	} else {
		c.JSON(f.Status, gin.H{"error": f.Message})
	}
	return true
}

func (s *Server) handleGenerateClip(c *gin.Context) {
	var sub ClipSubmission
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		sub.Multipart = true
		sub.Prompt = strings.TrimSpace(c.PostForm("prompt"))
		sub.APIKey = strings.TrimSpace(c.PostForm("api_key"))
		d, err := strconv.Atoi(c.DefaultPostForm("duration", "4"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duration"})
			return
		}
		sub.Duration = d
		if fh, err := c.FormFile("reference_image"); err == nil {
			sub.ReferenceName = fh.Filename
			sub.ReferenceSize = fh.Size
		}
	} else {
		var req types.GenerateClipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
			return
		}
		sub.Prompt = strings.TrimSpace(req.Prompt)
		sub.Duration = req.Duration
		sub.APIKey = req.APIKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure(c, "generate-clip") {
		return
	}
	if sub.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No prompt provided"})
		return
	}
	if !config.IsValidDuration(sub.Duration) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Duration must be 4, 8, or 12"})
		return
	}

	sub.ClipID = uuid.NewString()[:8]
	s.submissions = append(s.submissions, sub)
	s.clips[sub.ClipID] = &fakeClip{script: s.clipScript}

	c.JSON(http.StatusOK, types.GenerateClipResponse{ClipID: sub.ClipID, Status: types.ClipGenerating})
}

func (s *Server) handleClipStatus(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	clip, ok := s.clips[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}
	clip.polls++
	if s.failure(c, "clip-status") {
		return
	}

	step := types.ClipStatusResponse{Status: types.ClipGenerating}
	if n := len(clip.script); n > 0 {
		step = clip.script[min(clip.polls-1, n-1)]
	}
	step.ClipID = id
	c.JSON(http.StatusOK, step)
}

func (s *Server) handleClipVideo(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	clip, ok := s.clips[id]
	done := ok && len(clip.script) > 0 && clip.polls >= len(clip.script) &&
		clip.script[len(clip.script)-1].Status == types.ClipCompleted
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clip not found"})
		return
	}
	if !done {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Clip not ready"})
		return
	}
	c.Data(http.StatusOK, "video/mp4", []byte("fake-mp4:"+id))
}

func (s *Server) handleProcessText(c *gin.Context) {
	var req types.ProcessTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure(c, "process-text") {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No text provided"})
		return
	}
	s.processed = append(s.processed, req)

	clips := Decompose(req.Text, req.Style, req.MaxClips)
	duration := req.ClipDuration
	if duration == 0 {
		duration = config.DefaultClipDuration
	}
	c.JSON(http.StatusOK, types.ProcessTextResponse{
		Clips:             clips,
		TotalClips:        len(clips),
		EstimatedDuration: len(clips) * duration,
		ClipDuration:      duration,
	})
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req types.GenerateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failure(c, "generate") {
		return
	}
	if len(req.Clips) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No clips provided"})
		return
	}
	s.generated = append(s.generated, req)
	s.jobCounter++
	id := fmt.Sprintf("job-%d-%s", s.jobCounter, uuid.NewString()[:8])
	s.jobs[id] = &fakeJob{request: req, script: s.jobScript}

	c.JSON(http.StatusOK, types.GenerateJobResponse{JobID: id})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	job.polls++
	if s.failure(c, "status") {
		return
	}

	step := types.JobStatusResponse{Status: types.JobQueued}
	if n := len(job.script); n > 0 {
		step = job.script[min(job.polls-1, n-1)]
	}
	if step.TotalClips == 0 {
		step.TotalClips = len(job.request.Clips)
	}
	c.JSON(http.StatusOK, step)
}

func (s *Server) handleJobVideo(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	_, ok := s.jobs[id]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.Data(http.StatusOK, "video/mp4", []byte("fake-mp4:"+id))
}

// Decompose splits text into between config.MinClips and maxClips scene
// prompts, one per sentence, padding short scripts with continuation shots.
func Decompose(text, style string, maxClips int) []types.ScriptClip {
	if maxClips <= 0 {
		maxClips = config.MaxClips
	}
	if maxClips < config.MinClips {
		maxClips = config.MinClips
	}

	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var parts []string
	for _, p := range sentences {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > maxClips {
		parts = parts[:maxClips]
	}
	base := strings.TrimSpace(text)
	for i := len(parts); i < config.MinClips; i++ {
		parts = append(parts, fmt.Sprintf("%s (shot %d)", base, i+1))
	}

	clips := make([]types.ScriptClip, len(parts))
	for i, p := range parts {
		prompt := p
		if style != "" {
			prompt = fmt.Sprintf("%s, %s style", p, style)
		}
		clips[i] = types.ScriptClip{ID: i + 1, VisualPrompt: prompt, Narration: p}
	}
	return clips
}
