package http

import (
	"errors"
	"net/http"

	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/domain/metadata"
	"github.com/adocshq/adocs/internal/port/database"
	"github.com/adocshq/adocs/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Generator *service.Generator
	Injector  *service.Injector
	Content   *service.ContentGenerator
	Configs   *service.RepoConfigStore
	DB        database.Store
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GenerateStructure produces a documentation structure for the repository
// metadata in the request body and persists it.
func (h *Handlers) GenerateStructure(w http.ResponseWriter, r *http.Request) {
	meta, ok := readJSON[metadata.Metadata](w, r)
	if !ok {
		return
	}
	if meta.ResolveID() == "" {
		writeError(w, http.StatusBadRequest, "metadata must carry repo_id, github_url, or github_repo")
		return
	}

	result, err := h.Generator.Generate(r.Context(), meta)
	if err != nil {
		if errors.Is(err, service.ErrAllModelsFailed) {
			writeError(w, http.StatusBadGateway, "structure generation failed on all models")
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetStructure returns the stored generated structure for a repository.
func (h *Handlers) GetStructure(w http.ResponseWriter, r *http.Request) {
	repoID, ok := requireQuery(w, r, "repo")
	if !ok {
		return
	}

	structure, err := h.DB.GetStructure(r.Context(), repoID)
	if err != nil {
		writeDomainError(w, err, "no structure for repository")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"repo_id":   repoID,
		"structure": structure,
	})
}

// GetDocs serves the injected documentation view for a repository, built
// from its stored structure and custom section configuration.
func (h *Handlers) GetDocs(w http.ResponseWriter, r *http.Request) {
	repoID, ok := requireQuery(w, r, "repo")
	if !ok {
		return
	}

	structure, err := h.DB.GetStructure(r.Context(), repoID)
	if err != nil {
		writeDomainError(w, err, "no structure for repository")
		return
	}

	view, err := h.Injector.BuildDocs(r.Context(), repoID, *structure)
	if err != nil {
		writeDomainError(w, err, "documentation unavailable")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetSection serves one section by name, custom sections first.
func (h *Handlers) GetSection(w http.ResponseWriter, r *http.Request) {
	repoID, ok := requireQuery(w, r, "repo")
	if !ok {
		return
	}
	name, ok := requireQuery(w, r, "name")
	if !ok {
		return
	}

	structure, err := h.DB.GetStructure(r.Context(), repoID)
	if err != nil {
		writeDomainError(w, err, "no structure for repository")
		return
	}

	desc, err := h.Injector.GetSection(r.Context(), repoID, name, *structure)
	if err != nil {
		writeDomainError(w, err, "section not found")
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// GenerateContent runs a batch content job over the repository's stored
// structure, writing one markdown file per section.
func (h *Handlers) GenerateContent(w http.ResponseWriter, r *http.Request) {
	meta, ok := readJSON[metadata.Metadata](w, r)
	if !ok {
		return
	}
	repoID := meta.ResolveID()
	if repoID == "" {
		writeError(w, http.StatusBadRequest, "metadata must carry repo_id, github_url, or github_repo")
		return
	}

	structure, err := h.DB.GetStructure(r.Context(), repoID)
	if err != nil {
		writeDomainError(w, err, "no structure for repository")
		return
	}

	job, err := h.Content.GenerateAll(r.Context(), repoID, meta, *structure)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// acceptedStructureRequest is the body for recording an accepted structure.
type acceptedStructureRequest struct {
	RepoID    string         `json:"repo_id"`
	Structure docs.Structure `json:"structure"`
}

// AcceptStructure stores an operator-approved structure for future
// knowledge base builds.
func (h *Handlers) AcceptStructure(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[acceptedStructureRequest](w, r)
	if !ok {
		return
	}
	if req.RepoID == "" {
		writeError(w, http.StatusBadRequest, "repo_id is required")
		return
	}
	if err := req.Structure.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.DB.UpsertAcceptedStructure(r.Context(), req.RepoID, req.Structure); err != nil {
		writeDomainError(w, err, "failed to store accepted structure")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"repo_id": req.RepoID})
}

// KnowledgeStats reports knowledge base statistics.
func (h *Handlers) KnowledgeStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Generator.Stats())
}

// ValidateConfig checks the repository configuration file and returns one
// message per problem.
func (h *Handlers) ValidateConfig(w http.ResponseWriter, _ *http.Request) {
	problems, err := h.Configs.Validate()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

// ReloadConfig discards the cached repository configuration.
func (h *Handlers) ReloadConfig(w http.ResponseWriter, _ *http.Request) {
	h.Configs.Reload()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
