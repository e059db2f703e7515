// Package http provides HTTP handlers and middleware for the room booking API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     Response: {"token","expiresAt","principal"} with the token also surfaced
//     via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token and clears
//     the cookie. Returns 204 No Content.
//   - GET /rooms, POST /rooms, GET/PUT/DELETE /rooms/{id}: room catalog
//     endpoints. Listing and reading are open to any authenticated principal
//     while mutations require the administrator role.
//   - GET /rooms/status and GET /rooms/{id}/status: derived occupancy,
//     reported as "occupied" or "free". Occupancy is computed from confirmed
//     reservations, never stored.
//   - GET /rooms/{id}/availability?start&end: answers whether the room is free
//     for a slot without creating anything.
//   - GET /reservations, POST /reservations, GET/PUT/DELETE
//     /reservations/{id}: reservation lifecycle endpoints. DELETE cancels;
//     reservation rows are never removed.
//   - PUT /reservations/{id}/status: administrator approval workflow
//     (pending to confirmed or cancelled).
//   - POST /reservations/{id}/complete: administrator override that completes
//     a confirmed reservation ahead of the background sweeper.
//   - GET /users, POST /users, GET/DELETE /users/{id}: administrator
//     controlled user management.
//   - GET /ws: upgrades to a websocket for realtime notifications. The
//     session identity is bound server-side at upgrade time.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
