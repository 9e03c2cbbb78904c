package common

// InternalTokenHeaderName is the HTTP header carrying the shared internal
// token, both on calls to the upstream registry and on the ops endpoints.
const InternalTokenHeaderName = "X-Internal-Token"

// LastSyncKey is the sync_states key holding the registry cursor.
const LastSyncKey = "registry_last_sync_at"
