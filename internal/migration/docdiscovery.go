// docdiscovery.go: claims staged folders and stages their documents with
// mapped metadata and resolved destinations.
package migration

import (
	"context"
	"fmt"
	"log/slog"
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

// Repository property names carried on source document nodes.
const (
	propDocType     = "ecm:docType"
	propDocCode     = "ecm:docCode"
	propDescription = "cm:description"
	propVersion     = "cm:versionLabel"
	propSigned      = "ecm:signed"
	propStatus      = "ecm:status"
)

// DocDiscovery claims Ready folders in batches and stages every document they
// contain. Folder failures are isolated: a failing folder is marked Error and
// the batch continues.
type DocDiscovery struct {
	ds       datastore.Interface
	repo     repository.ReadWriter
	resolver *repository.Resolver
	table    *mapping.Table
	status   *mapping.StatusDeterminer

	// clients and offers are optional capabilities. When nil, enrichment is
	// skipped silently.
	clients enrichment.ClientLookup
	offers  enrichment.OfferLookup

	rootID    string
	batchSize int
	idleDelay time.Duration
	tracker   *ErrorTracker
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewDocDiscovery builds the document discovery service. The clients, offers,
// tracker and metrics arguments may be nil.
func NewDocDiscovery(
	ds datastore.Interface,
	repo repository.ReadWriter,
	resolver *repository.Resolver,
	table *mapping.Table,
	settings *conf.Settings,
	clients enrichment.ClientLookup,
	offers enrichment.OfferLookup,
	tracker *ErrorTracker,
	m *metrics.PipelineMetrics,
) *DocDiscovery {
	return &DocDiscovery{
		ds:        ds,
		repo:      repo,
		resolver:  resolver,
		table:     table,
		status:    mapping.NewStatusDeterminer(table, settings.Pipeline.RetentionRuleEnabled),
		clients:   clients,
		offers:    offers,
		rootID:    settings.Repository.MigrationRoot,
		batchSize: settings.Pipeline.FolderBatchSize,
		idleDelay: settings.Pipeline.IdleDelay,
		tracker:   tracker,
		metrics:   m,
		logger:    logging.ForService("doc-discovery"),
	}
}

// RunBatch claims one batch of Ready folders and processes each. It returns
// the number of folders claimed; zero means there was nothing to do.
func (d *DocDiscovery) RunBatch(ctx context.Context) (int, error) {
	folders, err := d.ds.TakeFoldersBatch(ctx, d.batchSize)
	if err != nil {
		return 0, errors.New(err).
			Component("doc-discovery").
			Category(errors.CategoryDatabase).
			Context("operation", "take-folders").
			Build()
	}

	for i := range folders {
		folder := &folders[i]
		if err := ctx.Err(); err != nil {
			return len(folders), errors.New(err).
				Component("doc-discovery").
				Category(errors.CategoryCancellation).
				Build()
		}
		if err := d.processFolder(ctx, folder); err != nil {
			// Folder failures never abort the batch. The row keeps the
			// truncated message for operator inspection.
			d.logger.Error("folder processing failed",
				"node_id", folder.NodeID,
				"name", folder.Name,
				"error", err)
			if d.metrics != nil {
				d.metrics.FolderErrors.Inc()
			}
			if failErr := d.ds.FailFolder(ctx, folder.NodeID, err.Error()); failErr != nil {
				d.logger.Error("failed to record folder error", "node_id", folder.NodeID, "error", failErr)
			}
			continue
		}
		if err := d.ds.SetFolderStatus(ctx, folder.NodeID, datastore.FolderProcessed); err != nil {
			d.logger.Error("failed to mark folder processed", "node_id", folder.NodeID, "error", err)
		}
	}
	return len(folders), nil
}

// RunAll drains the Ready folders: batches are claimed and processed until a
// claim returns nothing. Used by the orchestrator, where folder discovery has
// already completed and no new folders will appear.
func (d *DocDiscovery) RunAll(ctx context.Context) error {
	for {
		claimed, err := d.RunBatch(ctx)
		if err != nil {
			return err
		}
		if claimed == 0 {
			return nil
		}
	}
}

// RunLoop polls for Ready folders until the context is cancelled. An empty
// claim result triggers an idle delay rather than exit; only cancellation
// terminates the loop.
func (d *DocDiscovery) RunLoop(ctx context.Context) error {
	for {
		claimed, err := d.RunBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			d.logger.Error("discovery batch failed, retrying after delay", "error", err)
			claimed = 0
		}
		if claimed == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.idleDelay):
			}
		}
	}
}

// processFolder stages all documents inside one claimed folder.
func (d *DocDiscovery) processFolder(ctx context.Context, folder *datastore.FolderStaging) error {
	entries, err := d.repo.GetChildren(ctx, folder.NodeID)
	if err != nil {
		return errors.New(err).
			Component("doc-discovery").
			Category(errors.CategoryRepository).
			Context("folder", folder.NodeID).
			Build()
	}

	info := d.lookupClient(ctx, folder)

	docs := make([]datastore.DocStaging, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if entry.IsFolder {
			continue
		}
		doc, err := d.stageDocument(ctx, folder, entry, info)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil
	}

	inserted, err := d.ds.InsertDocs(ctx, docs)
	if err != nil {
		return errors.New(err).
			Component("doc-discovery").
			Category(errors.CategoryDatabase).
			Context("operation", "insert-docs").
			Context("folder", folder.NodeID).
			Build()
	}
	if d.metrics != nil {
		d.metrics.DocsStaged.Add(float64(inserted))
	}
	d.logger.Debug("folder documents staged",
		"folder", folder.Name,
		"documents", len(docs),
		"newly_staged", inserted)
	return nil
}

// folderClientInfo is the per-folder enrichment snapshot shared by all of the
// folder's documents.
type folderClientInfo struct {
	segment        string
	accountNumbers string
}

// lookupClient fetches client master data for the folder's CoreId. A missing
// client lookup capability or a lookup failure reduces to the data already on
// the staging row.
func (d *DocDiscovery) lookupClient(ctx context.Context, folder *datastore.FolderStaging) folderClientInfo {
	info := folderClientInfo{segment: folder.ClientSegment}
	if d.clients == nil || folder.CoreID == "" {
		return info
	}

	data, err := d.clients.GetClientData(ctx, folder.CoreID)
	if err != nil {
		d.logger.Warn("client lookup failed, continuing without enrichment",
			"core_id", folder.CoreID, "error", err)
		return info
	}
	if data.Segment != "" {
		info.segment = data.Segment
	}

	accounts, err := d.clients.GetActiveAccounts(ctx, folder.CoreID, time.Now())
	if err != nil {
		d.logger.Warn("account lookup failed", "core_id", folder.CoreID, "error", err)
	} else {
		info.accountNumbers = strings.Join(accounts, ",")
	}
	return info
}

// stageDocument maps one repository document entry to a staging row with its
// destination resolved.
func (d *DocDiscovery) stageDocument(ctx context.Context, folder *datastore.FolderStaging, entry *repository.Entry, info folderClientInfo) (datastore.DocStaging, error) {
	name := mapping.NormalizeName(entry.Name)
	docType := stringProp(entry, propDocType)
	docCode := stringProp(entry, propDocCode)
	if docCode == "" {
		docCode = docType
	}

	target := mapping.DetermineAndResolve(docType, folder.TipDosijea, info.segment)
	dossierID := d.dossierIDFor(ctx, folder, target)

	toPath := dossierID
	if prefix := target.Prefix(); prefix != "" {
		toPath = fmt.Sprintf("DOSSIERS-%s/%s", prefix, dossierID)
	}

	destID, err := d.resolver.Resolve(ctx, d.rootID, toPath)
	if err != nil {
		return datastore.DocStaging{}, errors.New(err).
			Component("doc-discovery").
			Category(errors.CategoryPreparation).
			Context("path", toPath).
			Build()
	}

	doc := datastore.DocStaging{
		NodeID:               entry.ID,
		DocDescription:       stringProp(entry, propDescription),
		OriginalDocumentCode: docCode,
		DocumentType:         docType,
		NewDocumentCode:      d.table.GetMigratedCode(docCode),
		NewDocumentName:      d.table.GetMigratedName(name),
		TipDosijea:           folder.TipDosijea,
		TargetDossierType:    int(target),
		Source:               mapping.SourceFor(target),
		IsActive:             d.status.DetermineStatus(name) == mapping.StatusActive,
		OldAlfrescoStatus:    stringProp(entry, propStatus),
		CoreID:               folder.CoreID,
		ClientSegment:        info.segment,
		AccountNumbers:       info.accountNumbers,
		ContractNumber:       folder.ContractNumber,
		ProductType:          folder.ProductType,
		DestRootID:           d.rootID,
		ToPath:               toPath,
		DossierDestFolderID:  destID,
		Status:               datastore.DocReady,
		Version:              stringProp(entry, propVersion),
		IsSigned:             boolProp(entry, propSigned),
		OriginalCreatedAt:    entry.CreatedAt,
	}
	doc.NewAlfrescoStatus = mapping.StatusActive.String()
	if !doc.IsActive {
		doc.NewAlfrescoStatus = mapping.StatusInactive.String()
	}
	return doc, nil
}

// dossierIDFor derives the destination dossier id for a folder. Deposit
// dossiers get the extended contract-qualified id; an ambiguous offer match is
// surfaced as a warning and the plain id is kept for manual resolution.
func (d *DocDiscovery) dossierIDFor(ctx context.Context, folder *datastore.FolderStaging, target mapping.DossierType) string {
	plain := mapping.ConvertForTargetType(folder.Name, target)
	if target != mapping.DossierDeposit {
		return plain
	}

	contract, product := folder.ContractNumber, folder.ProductType
	if (contract == "" || product == "") && d.offers != nil && folder.CoreID != "" {
		match, err := d.offers.FindOffersByDate(ctx, folder.CoreID, folder.CreatedAt)
		switch {
		case err != nil:
			d.logger.Warn("offer lookup failed for deposit dossier",
				"core_id", folder.CoreID, "error", err)
		case match.Ambiguous():
			d.logger.Warn("ambiguous offer match, deposit id needs manual resolution",
				"core_id", folder.CoreID, "candidates", len(match.Offers))
		default:
			if offer, ok := match.Single(); ok {
				contract, product = offer.ContractNumber, offer.ProductType
			}
		}
	}
	if contract == "" || product == "" {
		return plain
	}

	id, err := mapping.CreateDepositDossierId(folder.CoreID, product, contract)
	if err != nil {
		d.logger.Warn("cannot build deposit dossier id, keeping plain id",
			"core_id", folder.CoreID, "error", err)
		return plain
	}
	return id
}

func stringProp(e *repository.Entry, key string) string {
	if v, ok := e.Properties[key].(string); ok {
		return v
	}
	return ""
}

func boolProp(e *repository.Entry, key string) bool {
	if v, ok := e.Properties[key].(bool); ok {
		return v
	}
	return false
}
