// Package lib groups supporting libraries that are not a service layer of
// their own: the worker pool behind batch runs (workerpool) and the Asynq
// background job runner (job).
package lib
