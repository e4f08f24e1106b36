// Package service holds the business operations behind the HTTP handlers.
// Handlers pass validated input in; services talk to repositories, the
// batch coordinator and the job queue.
package service
