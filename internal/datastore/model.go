// model.go defines the staging tables and checkpoint rows for the migration pipeline
package datastore

import "time"

// FolderStatus tracks a staged source folder through the pipeline.
type FolderStatus string

const (
	FolderReady     FolderStatus = "READY"
	FolderPrepared  FolderStatus = "PREPARED"
	FolderProcessed FolderStatus = "PROCESSED"
	FolderError     FolderStatus = "ERROR"
)

// DocStatus tracks a staged document through the pipeline.
type DocStatus string

const (
	DocReady      DocStatus = "READY"
	DocProcessing DocStatus = "PROCESSING"
	DocDone       DocStatus = "DONE"
	DocError      DocStatus = "ERROR"
	DocFailed     DocStatus = "FAILED"
)

// Source system tags for staged documents.
const (
	SourceHeimdall = "Heimdall"
	SourceDUT      = "DUT"
)

// FolderStaging is one source folder queued for migration.
type FolderStaging struct {
	ID            uint         `gorm:"primaryKey"`
	NodeID        string       `gorm:"uniqueIndex;size:100;not null"` // source folder node id
	ParentID      string       `gorm:"size:100"`
	Name          string       `gorm:"size:500"`
	Status        FolderStatus `gorm:"index;size:20;not null"`
	DestFolderID  string       `gorm:"size:100"` // resolved destination folder node id
	CoreID        string       `gorm:"index;size:50"`
	ClientType    string       `gorm:"size:50"`
	ClientSegment string       `gorm:"size:50"`
	TipDosijea    string       `gorm:"size:200"` // dossier classification description

	// Enrichment fields, populated from the client lookup service.
	ClientName string `gorm:"size:500"`
	MbrJmbg    string `gorm:"size:50"`
	Residency  string `gorm:"size:50"`
	Segment    string `gorm:"size:50"`

	// Deposit-specific fields.
	ContractNumber string `gorm:"size:100"`
	ProductType    string `gorm:"size:100"`

	ErrorMsg  string `gorm:"type:varchar(4000)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocStaging is one document queued for migration.
type DocStaging struct {
	ID             uint   `gorm:"primaryKey"`
	NodeID         string `gorm:"uniqueIndex;size:100;not null"` // source content node id
	DocDescription string `gorm:"size:500"`

	OriginalDocumentCode string `gorm:"size:50"`
	DocumentType         string `gorm:"index:idx_doc_stagings_group;size:50"`
	NewDocumentCode      string `gorm:"size:50"`
	NewDocumentName      string `gorm:"size:500"`

	TipDosijea        string `gorm:"size:200"`
	TargetDossierType int    `gorm:"index"` // numeric destination classification
	Source            string `gorm:"size:20"`

	IsActive          bool
	OldAlfrescoStatus string `gorm:"size:50"`
	NewAlfrescoStatus string `gorm:"size:50"`

	CoreID         string `gorm:"index:idx_doc_stagings_group;size:50"`
	ClientSegment  string `gorm:"size:50"`
	AccountNumbers string `gorm:"size:2000"` // comma-joined active account numbers

	ContractNumber string `gorm:"size:100"`
	ProductType    string `gorm:"size:100"`

	// Resolved destination. A document is eligible for move only once one of
	// these is set.
	DestRootID          string `gorm:"size:100"` // destination root folder node id
	ToPath              string `gorm:"size:1000"`
	DossierDestFolderID string `gorm:"size:100"`

	Status     DocStatus `gorm:"index:idx_doc_stagings_status;size:20;not null"`
	RetryCount int       `gorm:"index:idx_doc_stagings_status"`
	ErrorMsg   string    `gorm:"type:varchar(4000)"`

	// Post-migration transformation. Set together, and only on the most
	// recently created document per (CoreID, DocumentType) group.
	DocumentTypeMigration string `gorm:"size:50"`
	FinalDocumentType     string `gorm:"size:50"`

	Version           string `gorm:"size:20"`
	IsSigned          bool
	OriginalCreatedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Phase identifies one pipeline phase, in execution order.
type Phase int

const (
	PhaseFolderDiscovery Phase = iota + 1
	PhaseDocumentDiscovery
	PhaseFolderPreparation
	PhaseMove
)

// Phases returns all pipeline phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseFolderDiscovery, PhaseDocumentDiscovery, PhaseFolderPreparation, PhaseMove}
}

func (p Phase) String() string {
	switch p {
	case PhaseFolderDiscovery:
		return "FolderDiscovery"
	case PhaseDocumentDiscovery:
		return "DocumentDiscovery"
	case PhaseFolderPreparation:
		return "FolderPreparation"
	case PhaseMove:
		return "Move"
	default:
		return "Unknown"
	}
}

// ParsePhase maps a phase name back to its enum value.
func ParsePhase(name string) (Phase, bool) {
	for _, p := range Phases() {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

// CheckpointStatus is the durable state of one pipeline phase.
type CheckpointStatus string

const (
	CheckpointNotStarted CheckpointStatus = "NOT_STARTED"
	CheckpointInProgress CheckpointStatus = "IN_PROGRESS"
	CheckpointCompleted  CheckpointStatus = "COMPLETED"
	CheckpointFailed     CheckpointStatus = "FAILED"
)

// PhaseCheckpoint is the sole durable record of a phase's progress. It must
// survive process restarts.
type PhaseCheckpoint struct {
	ID                 uint             `gorm:"primaryKey"`
	Phase              Phase            `gorm:"uniqueIndex;not null"`
	Status             CheckpointStatus `gorm:"size:20;not null"`
	RunID              string           `gorm:"size:40"`
	StartedAt          *time.Time
	CompletedAt        *time.Time
	LastProcessedIndex int
	LastProcessedID    string `gorm:"size:100"`
	TotalProcessed     int
	TotalItems         *int   // unknown until counted
	ErrorMessage       string `gorm:"type:varchar(4000)"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Destination is one unique (root, relative path) folder reference implied by
// the staged documents.
type Destination struct {
	RootID string
	Path   string
}

// MoveRef is the narrow ready-for-move projection used by the folder-id based
// move service: source node plus already-resolved destination folder.
type MoveRef struct {
	ID           uint
	NodeID       string
	DestFolderID string
}
