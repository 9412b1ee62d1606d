// docsearch.go: alternate discovery strategy that queries documents directly
// by type code across the destination-type root folders.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/errors"
	"github.com/dkovacevic/dossier-migrate/internal/enrichment"
	"github.com/dkovacevic/dossier-migrate/internal/logging"
	"github.com/dkovacevic/dossier-migrate/internal/mapping"
	"github.com/dkovacevic/dossier-migrate/internal/observability/metrics"
	"github.com/dkovacevic/dossier-migrate/internal/repository"
)

// searchCursor is the in-memory pagination state of the typed document
// search: which dossier-type folder is being traversed and how far into it
// the search has paged. It survives across RunBatch calls on the same
// service instance but not across process restarts.
type searchCursor struct {
	typeIndex int
	skip      int
}

// DocSearch pages through documents by type code, one DOSSIERS-{TYPE} root at
// a time, staging both the unique parent folders found in result paths and
// the documents themselves.
type DocSearch struct {
	ds      datastore.Interface
	reader  repository.Reader
	table   *mapping.Table
	status  *mapping.StatusDeterminer
	clients enrichment.ClientLookup // optional, nil skips enrichment

	dossierRoot string
	rootID      string
	pageSize    int
	typeCodes   []string
	types       []string
	createdFrom string
	createdTo   string
	idleDelay   time.Duration
	emptyLimit  int

	cursor      searchCursor
	typeFolders map[string]string // DOSSIERS-{TYPE} folder ids, discovered once
	parentMatch map[string]*regexp.Regexp

	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewDocSearch builds the typed search service. The clients and metrics
// arguments may be nil.
func NewDocSearch(ds datastore.Interface, reader repository.Reader, table *mapping.Table, settings *conf.Settings, clients enrichment.ClientLookup, m *metrics.PipelineMetrics) *DocSearch {
	s := &DocSearch{
		ds:          ds,
		reader:      reader,
		table:       table,
		status:      mapping.NewStatusDeterminer(table, settings.Pipeline.RetentionRuleEnabled),
		clients:     clients,
		dossierRoot: settings.Repository.DossierRoot,
		rootID:      settings.Repository.MigrationRoot,
		pageSize:    settings.Repository.PageSize,
		typeCodes:   settings.Pipeline.DocumentTypeCodes,
		types:       settings.Pipeline.DossierTypes,
		createdFrom: settings.Pipeline.SearchCreatedFrom,
		createdTo:   settings.Pipeline.SearchCreatedTo,
		idleDelay:   settings.Pipeline.IdleDelay,
		emptyLimit:  settings.Pipeline.EmptyBatchLimit,
		parentMatch: make(map[string]*regexp.Regexp),
		metrics:     m,
		logger:      logging.ForService("doc-search"),
	}
	for _, t := range s.types {
		// Deposit roots are named DOSSIERS-D but their dossier folders carry
		// the DE prefix.
		letters := t
		if strings.EqualFold(t, "D") {
			letters = "DE"
		}
		s.parentMatch[t] = regexp.MustCompile("^" + regexp.QuoteMeta(strings.ToUpper(letters)) + "[0-9]")
	}
	return s
}

// SearchBatch is the outcome of one typed-search page. Seen counts the
// entries the search returned before any filtering or dedupe, so a zero Seen
// means the cursor found nothing, while a zero Staged with a non-zero Seen
// means every hit was already staged or filtered out.
type SearchBatch struct {
	Seen   int
	Staged int
}

// RunBatch executes one page of the typed search. A batch with Seen zero and
// nil error means the current type page was empty; once every configured type
// is exhausted all subsequent calls return an empty batch.
func (s *DocSearch) RunBatch(ctx context.Context) (SearchBatch, error) {
	if err := s.ensureTypeFolders(ctx); err != nil {
		return SearchBatch{}, err
	}
	if s.cursor.typeIndex >= len(s.types) {
		return SearchBatch{}, nil
	}

	dossierType := s.types[s.cursor.typeIndex]
	folderID, ok := s.typeFolders[dossierType]
	if !ok {
		s.logger.Warn("no root folder for dossier type, skipping", "type", dossierType)
		s.advanceType()
		return SearchBatch{}, nil
	}

	query := repository.NewQuery().
		FieldAny(propDocType, s.typeCodes).
		Ancestor(folderID).
		CreatedBetween(s.createdFrom, s.createdTo).
		String()
	sort := []repository.Sort{
		{Field: "cm:created", Ascending: true},
		{Field: "cm:name", Ascending: true},
	}

	page, err := s.reader.Search(ctx, query, s.cursor.skip, s.pageSize, sort)
	if err != nil {
		return SearchBatch{}, errors.New(err).
			Component("doc-search").
			Category(errors.CategoryDiscovery).
			Context("type", dossierType).
			Context("skip", s.cursor.skip).
			Build()
	}
	if len(page.Entries) == 0 {
		s.advanceType()
		return SearchBatch{}, nil
	}

	// The ANCESTOR clause matches any depth, so results can include documents
	// from unrelated subtrees. Keep only documents whose immediate parent is a
	// dossier folder of the current type.
	matcher := s.parentMatch[dossierType]
	kept := make([]repository.Entry, 0, len(page.Entries))
	for i := range page.Entries {
		if matcher.MatchString(parentNameFromPath(page.Entries[i].Path)) {
			kept = append(kept, page.Entries[i])
		}
	}

	staged, err := s.stageResults(ctx, dossierType, kept)
	if err != nil {
		return SearchBatch{}, err
	}

	if page.HasMore {
		s.cursor.skip += len(page.Entries)
	} else {
		s.advanceType()
	}
	return SearchBatch{Seen: len(page.Entries), Staged: staged}, nil
}

// RunLoop calls RunBatch until a configured number of consecutive empty
// batches signals that the typed cursor is exhausted. Emptiness is judged on
// what the search returned, not on what got staged, so pages full of
// already-staged rows keep the cursor moving toward unvisited pages. Errors
// are logged and retried after double the idle delay; only cancellation
// aborts.
func (s *DocSearch) RunLoop(ctx context.Context) error {
	consecutiveEmpty := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := s.RunBatch(ctx)
		if err != nil {
			s.logger.Error("search batch failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * s.idleDelay):
			}
			continue
		}
		if batch.Seen == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= s.emptyLimit {
				s.logger.Info("typed search exhausted", "empty_batches", consecutiveEmpty)
				return nil
			}
			continue
		}
		consecutiveEmpty = 0
	}
}

// ensureTypeFolders discovers the DOSSIERS-{TYPE} subfolders once per service
// lifetime.
func (s *DocSearch) ensureTypeFolders(ctx context.Context) error {
	if s.typeFolders != nil {
		return nil
	}
	children, err := s.reader.GetChildren(ctx, s.dossierRoot)
	if err != nil {
		return errors.New(err).
			Component("doc-search").
			Category(errors.CategoryRepository).
			Context("operation", "list-dossier-roots").
			Build()
	}
	folders := make(map[string]string, len(s.types))
	for _, t := range s.types {
		want := "DOSSIERS-" + strings.ToUpper(t)
		for i := range children {
			if children[i].IsFolder && strings.EqualFold(children[i].Name, want) {
				folders[t] = children[i].ID
				break
			}
		}
	}
	s.typeFolders = folders
	s.logger.Info("dossier type roots discovered", "found", len(folders), "configured", len(s.types))
	return nil
}

func (s *DocSearch) advanceType() {
	s.cursor.typeIndex++
	s.cursor.skip = 0
}

// stageResults inserts the unique parent folders extracted from the result
// paths, then the documents themselves.
func (s *DocSearch) stageResults(ctx context.Context, dossierType string, entries []repository.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	// Unique parents come from the result paths, not a per-document lookup.
	parents := make(map[string]datastore.FolderStaging)
	for i := range entries {
		entry := &entries[i]
		if entry.ParentID == "" {
			continue
		}
		if _, seen := parents[entry.ParentID]; seen {
			continue
		}
		parents[entry.ParentID] = s.folderForParent(ctx, entry)
	}
	if len(parents) > 0 {
		folders := make([]datastore.FolderStaging, 0, len(parents))
		for _, f := range parents {
			folders = append(folders, f)
		}
		inserted, err := s.ds.InsertFolders(ctx, folders)
		if err != nil {
			return 0, errors.New(err).
				Component("doc-search").
				Category(errors.CategoryDatabase).
				Context("operation", "insert-folders").
				Build()
		}
		if s.metrics != nil {
			s.metrics.FoldersStaged.Add(float64(inserted))
		}
	}

	docs := make([]datastore.DocStaging, 0, len(entries))
	for i := range entries {
		docs = append(docs, s.docForEntry(&entries[i], parents[entries[i].ParentID]))
	}
	inserted, err := s.ds.InsertDocs(ctx, docs)
	if err != nil {
		return 0, errors.New(err).
			Component("doc-search").
			Category(errors.CategoryDatabase).
			Context("operation", "insert-docs").
			Context("type", dossierType).
			Build()
	}
	if s.metrics != nil {
		s.metrics.DocsStaged.Add(float64(inserted))
	}
	return int(inserted), nil
}

// folderForParent builds a staging row for a document's parent dossier
// folder. Documents found by the typed search are staged directly, so the
// folder is recorded as already processed.
func (s *DocSearch) folderForParent(ctx context.Context, entry *repository.Entry) datastore.FolderStaging {
	name := parentNameFromPath(entry.Path)
	folder := datastore.FolderStaging{
		NodeID: entry.ParentID,
		Name:   name,
		Status: datastore.FolderProcessed,
		CoreID: coreIDFromName(name),
	}
	if s.clients == nil || folder.CoreID == "" {
		return folder
	}
	data, err := s.clients.GetClientData(ctx, folder.CoreID)
	if err != nil {
		// Enrichment is best-effort here. The folder is staged either way.
		s.logger.Debug("client enrichment skipped", "core_id", folder.CoreID, "error", err)
		return folder
	}
	folder.ClientName = data.Name
	folder.MbrJmbg = data.MbrJmbg
	folder.Residency = data.Residency
	folder.Segment = data.Segment
	folder.ClientSegment = data.Segment
	folder.ClientType = data.Type
	return folder
}

// docForEntry maps one search hit to a staging row. The destination is
// recorded as a path; the physical hierarchy is created later by folder
// preparation.
func (s *DocSearch) docForEntry(entry *repository.Entry, parent datastore.FolderStaging) datastore.DocStaging {
	name := mapping.NormalizeName(entry.Name)
	docType := stringProp(entry, propDocType)
	docCode := stringProp(entry, propDocCode)
	if docCode == "" {
		docCode = docType
	}

	parentName := parentNameFromPath(entry.Path)
	target := mapping.TypeForPrefix(letterPrefix(parentName))
	dossierID := mapping.ConvertForTargetType(parentName, target)
	toPath := dossierID
	if prefix := target.Prefix(); prefix != "" {
		toPath = fmt.Sprintf("DOSSIERS-%s/%s", prefix, dossierID)
	}

	isActive := s.status.DetermineStatus(name) == mapping.StatusActive
	doc := datastore.DocStaging{
		NodeID:               entry.ID,
		DocDescription:       stringProp(entry, propDescription),
		OriginalDocumentCode: docCode,
		DocumentType:         docType,
		NewDocumentCode:      s.table.GetMigratedCode(docCode),
		NewDocumentName:      s.table.GetMigratedName(name),
		TargetDossierType:    int(target),
		Source:               mapping.SourceFor(target),
		IsActive:             isActive,
		OldAlfrescoStatus:    stringProp(entry, propStatus),
		NewAlfrescoStatus:    mapping.StatusActive.String(),
		CoreID:               parent.CoreID,
		ClientSegment:        parent.ClientSegment,
		DestRootID:           s.rootID,
		ToPath:               toPath,
		Status:               datastore.DocReady,
		Version:              stringProp(entry, propVersion),
		IsSigned:             boolProp(entry, propSigned),
		OriginalCreatedAt:    entry.CreatedAt,
	}
	if !isActive {
		doc.NewAlfrescoStatus = mapping.StatusInactive.String()
	}
	return doc
}

// parentNameFromPath extracts the immediate parent folder name from a display
// path such as "/Company Home/DOSSIERS-PI/PI102206".
func parentNameFromPath(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// letterPrefix returns the leading letter run of a dossier folder name.
func letterPrefix(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] < 'A' || (name[i] > 'Z' && name[i] < 'a') || name[i] > 'z' {
			return name[:i]
		}
	}
	return name
}
