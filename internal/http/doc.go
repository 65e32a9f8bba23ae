// Package http provides HTTP handlers and middleware for the timebox API.
//
// All endpoints live under /api and exchange JSON. Authentication uses a
// session token issued by the auth endpoints and presented as a bearer token,
// an X-Session-Token header, or the session_token cookie:
//   - POST /api/auth/register, POST /api/auth/login: issue a session token.
//   - POST /api/auth/logout: revokes the current session.
//   - GET/PUT/DELETE /api/profile: account management.
//   - GET/POST /api/tasks, GET/PUT/DELETE /api/tasks/{id}: task CRUD.
//   - POST /api/tasks/{id}/complete, POST /api/tasks/{id}/reopen: completion.
//   - GET/POST /api/tasks/{id}/scheduled-times,
//     PUT/DELETE /api/tasks/{id}/scheduled-times/{slotId}: calendar placements.
//     Mutation responses carry advisory overlap warnings.
//   - GET /api/scheduled-times: every placement across the user's tasks.
//   - GET /api/tasks/history: per-day minutes worked across completed tasks.
//   - GET/POST /api/reminders, GET/PATCH/DELETE /api/reminders/{id},
//     GET /api/reminders/active?date=YYYY-MM-DD: reminders.
//   - GET/POST /api/recurring-events, PUT/DELETE /api/recurring-events/{id},
//     GET /api/recurring-events/occurrences?from=...&to=...: daily templates.
//   - GET /api/auth/outlook (302 to the consent page),
//     GET /api/auth/outlook/callback: Microsoft account linkage.
//   - /api/outlook/...: disconnect, status, sync-enabled toggle, webhook
//     subscriptions, manual sync, calendar events, sync outcomes, and the
//     Graph change-notification receiver. The webhook and OAuth callback are
//     the only unauthenticated endpoints besides register and login.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
