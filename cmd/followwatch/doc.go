// Command followwatch serves the follow-tracker API and polls tracked accounts for new followings.
//
// Architecture overview:
//   - HTTP API: internal/api exposes signup/login, tracker management behind bearer tokens, media checks,
//     health probes and /metrics.
//   - Polling: internal/poller runs a cron schedule (hourly by default). Each cycle walks every tracker,
//     fetches the current following list through the resilient provider client, diffs it against the stored
//     baseline and emails the owner about newcomers before replacing the baseline.
//   - Provider: internal/provider caches responses with per-kind TTLs, backs off on 429 with jitter and
//     normalizes every upstream failure into one error shape.
//   - Persistence: Postgres when db.dsn is set, otherwise in-memory stores. Change snapshots can be archived
//     to GCS or local disk and change events published to Pub/Sub.
//
// Usage:
//
//	followwatch serve --config config.yaml
//	followwatch poll            # run one cycle and exit
//
// Every key can be overridden with FOLLOWWATCH_<SECTION>_<KEY>, e.g. FOLLOWWATCH_DB_DSN. PORT overrides server.port.
package main
