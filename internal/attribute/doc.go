// Package attribute holds the externally visible attributes of each heat pump
// and records their change history.
//
// Store is the synchronous attribute boundary used by the reconcile pipeline:
// attributes are added, updated and removed explicitly, and every effective
// change is delivered to registered listeners (MQTT state, WebSocket hub,
// InfluxDB, SQLite history).
//
// SQLiteHistoryRepository persists changes to the attribute_history table so
// recent values survive restarts and are queryable without the time-series
// database.
package attribute
