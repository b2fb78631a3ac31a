package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ontomap/sssom-curator/internal/curation"
	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/http/response"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// CurationHandler translates HTTP requests into controller calls. It adds
// no semantics of its own: query parameters map onto the query spec, and
// the controller's error taxonomy maps onto status codes.
type CurationHandler struct {
	log        *logger.Logger
	controller curation.Controller
	// defaultAuthors is the configured curator identity, used when a
	// mark request does not name authors.
	defaultAuthors []curies.Reference
	// eagerPersist flushes after every mark instead of waiting for an
	// explicit persist call.
	eagerPersist bool
}

func NewCurationHandler(
	log *logger.Logger,
	controller curation.Controller,
	defaultAuthors []curies.Reference,
	eagerPersist bool,
) *CurationHandler {
	return &CurationHandler{
		log:            log.With("handler", "CurationHandler"),
		controller:     controller,
		defaultAuthors: defaultAuthors,
		eagerPersist:   eagerPersist,
	}
}

// queryFromRequest maps URL parameters onto the query spec. All fields
// are optional; a missing limit pages by the default, limit=none removes
// the bound.
func queryFromRequest(c *gin.Context) (curation.Query, error) {
	q := curation.Query{
		Text:          c.Query("query"),
		SubjectText:   c.Query("subject_query"),
		ObjectText:    c.Query("object_query"),
		SubjectPrefix: c.Query("subject_prefix"),
		ObjectPrefix:  c.Query("object_prefix"),
		EitherPrefix:  c.Query("prefix"),
		Provenance:    c.Query("provenance"),
	}

	if raw := c.Query("same_text"); raw != "" {
		q.SameText = raw == "true" || raw == "t" || raw == "1"
	}

	sortSpec, err := curation.ParseSort(c.Query("sort"))
	if err != nil {
		return q, err
	}
	q.Sort = sortSpec

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return q, &curation.ValidationError{Reason: fmt.Sprintf("invalid offset %q", raw)}
		}
		q.Offset = offset
	}

	switch raw := c.Query("limit"); raw {
	case "":
		q = q.WithDefaultLimit()
	case "none", "all":
		// unbounded
	default:
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return q, &curation.ValidationError{Reason: fmt.Sprintf("invalid limit %q", raw)}
		}
		q.Limit = &limit
	}
	return q, nil
}

func respondControllerError(c *gin.Context, err error) {
	var notFound *curation.NotFoundError
	var invalid *curation.ValidationError
	switch {
	case errors.As(err, &notFound):
		response.RespondError(c, http.StatusNotFound, "mapping_not_found", err)
	case errors.As(err, &invalid):
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
	default:
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}

type listResponse struct {
	Mappings []sssom.Mapping `json:"mappings"`
	Total    int             `json:"total"`
	Offset   int             `json:"offset"`
	Limit    *int            `json:"limit"`
}

// List serves the filtered, sorted, paginated working set plus the total
// match count for pagination controls.
func (h *CurationHandler) List(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		respondControllerError(c, err)
		return
	}
	mappings, err := h.controller.List(q)
	if err != nil {
		respondControllerError(c, err)
		return
	}
	total, err := h.controller.Count(q)
	if err != nil {
		respondControllerError(c, err)
		return
	}
	if mappings == nil {
		mappings = []sssom.Mapping{}
	}
	response.RespondOK(c, listResponse{
		Mappings: mappings,
		Total:    total,
		Offset:   q.Offset,
		Limit:    q.Limit,
	})
}

func (h *CurationHandler) Count(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		respondControllerError(c, err)
		return
	}
	count, err := h.controller.Count(q)
	if err != nil {
		respondControllerError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": count})
}

type summaryRow struct {
	SubjectPrefix string `json:"subject_prefix"`
	ObjectPrefix  string `json:"object_prefix"`
	Count         int    `json:"count"`
}

// Summary serves the prefix histogram, most frequent pair first.
func (h *CurationHandler) Summary(c *gin.Context) {
	q, err := queryFromRequest(c)
	if err != nil {
		respondControllerError(c, err)
		return
	}
	histogram, err := h.controller.PrefixHistogram(q.Unbounded())
	if err != nil {
		respondControllerError(c, err)
		return
	}
	rows := make([]summaryRow, 0, len(histogram))
	for pair, count := range histogram {
		rows = append(rows, summaryRow{SubjectPrefix: pair.Subject, ObjectPrefix: pair.Object, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].SubjectPrefix != rows[j].SubjectPrefix {
			return rows[i].SubjectPrefix < rows[j].SubjectPrefix
		}
		return rows[i].ObjectPrefix < rows[j].ObjectPrefix
	})
	response.RespondOK(c, gin.H{"rows": rows})
}

type markRequest struct {
	Outcome string   `json:"outcome" binding:"required"`
	Authors []string `json:"authors"`
}

// Mark transitions one mapping out of the working set. Unknown records
// are 404, malformed outcomes 400; neither mutates anything.
func (h *CurationHandler) Mark(c *gin.Context) {
	record := c.Param("record")

	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	outcome, err := curation.ParseOutcome(req.Outcome)
	if err != nil {
		respondControllerError(c, err)
		return
	}

	authors := h.defaultAuthors
	if len(req.Authors) > 0 {
		authors = make([]curies.Reference, 0, len(req.Authors))
		for _, curie := range req.Authors {
			author, err := curies.ParseCURIE(curie)
			if err != nil {
				response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
				return
			}
			authors = append(authors, author)
		}
	}

	if err := h.controller.Mark(record, outcome, authors); err != nil {
		respondControllerError(c, err)
		return
	}
	if h.eagerPersist {
		if err := h.controller.Persist(); err != nil {
			respondControllerError(c, err)
			return
		}
	}
	response.RespondOK(c, gin.H{
		"record":        record,
		"outcome":       outcome.String(),
		"total_curated": h.controller.TotalCurated(),
	})
}

// Persist flushes buffered curations to the repository files.
func (h *CurationHandler) Persist(c *gin.Context) {
	pending := h.controller.Unpersisted()
	if err := h.controller.Persist(); err != nil {
		respondControllerError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"persisted": pending})
}
