// Package solver accepts signed orders, persists them, and hands them off to
// the solver network through a pluggable delivery queue. In-process, Redis and
// RabbitMQ queue drivers are provided.
package solver
