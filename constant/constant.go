package constant

import "os"

// <NodeDir>/                    (e.g., /home/user/.shelfsync)
// └── config/
//	└── shelfsync_config.json
// └── databases/
//	└── shelf_data.db

const (
	NodeDir = ".shelfsync"

	ConfigSubdir   = "config"
	ConfigFileName = "shelfsync_config.json"

	DatabasesSubdir  = "databases"
	DatabaseFileName = "shelf_data.db"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// Ledger tag names. Every published record carries the App/Schema/Visibility/
// encryption tags; edits add TagPrev, deletes are Op=tombstone records with a
// TagRef pointing at the txid being deleted.
const (
	TagAppName    = "App-Name"
	TagSchema     = "Schema"
	TagVersion    = "Schema-Version"
	TagVisibility = "Visibility"
	TagEncryption = "Enc-Alg"
	TagKeyID      = "Key-Id"
	TagPrev       = "Prev"
	TagOp         = "Op"
	TagRef        = "Ref"
	TagSignature  = "Signature"

	// TagCredentialLookup values are published in plaintext and must validate
	// as 64 lowercase hex characters before reaching any query template.
	TagCredentialLookup = "Credential-Lookup-Key"
)

// Tag values.
const (
	AppName           = "Shelf"
	SchemaEntry       = "shelf-entry"
	SchemaVersion     = "1"
	VisibilityPrivate = "private"
	EncryptionAESGCM  = "aes-256-gcm"
	OpTombstone       = "tombstone"
)

// Session-store key namespace. ClearSession removes all of these atomically.
const (
	SessionKeyAccount        = "session/account"
	SessionKeySymmetricKey   = "session/symmetric-key"
	SessionKeySeed           = "session/encrypted-seed"
	SessionKeyCredentialMeta = "session/credential-meta"
	SessionKeyPendingMapping = "session/pending-mapping"
	SessionKeyFundingHistory = "session/funding-history"
	SessionKeyFundBlock      = "session/fund-block"
)

// SessionKeys lists every namespaced session key for atomic teardown.
var SessionKeys = []string{
	SessionKeyAccount,
	SessionKeySymmetricKey,
	SessionKeySeed,
	SessionKeyCredentialMeta,
	SessionKeyPendingMapping,
	SessionKeyFundingHistory,
	SessionKeyFundBlock,
}
