// Package observability provides logging and metrics support for the
// editorial workflow service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger.Info().Int64("submission_id", id).Msg("decision recorded")
//
// Request-scoped fields travel through the context and are attached with
// FromContext:
//
//	ctx = observability.WithRequestContextFull(ctx, observability.RequestContext{
//	    RequestID: reqID,
//	    UserID:    userID,
//	})
//	log := observability.FromContext(ctx, logger)
//
// # Metrics
//
//	metrics := observability.NewMetrics("editorial")
//	metrics.RecordDecision(string(domain.DecisionAccept))
//
// # Standard Fields
//
//   - request_id: HTTP request correlation id
//   - user_id: acting user
//   - context_id: journal or press owning the submission
//   - submission_id, review_round_id, submission_file_id
//   - job, job_run_id: scheduled maintenance runs
package observability
