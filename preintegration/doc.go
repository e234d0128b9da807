// Package preintegration summarizes a stream of high-rate IMU samples between
// two instants into a single relative-motion increment (orientation, velocity,
// position) together with its 15x15 error covariance and its sensitivity to
// accelerometer/gyroscope bias errors.
//
// The increment is expressed in the body frame at the start of the interval,
// so an estimator can re-linearize against it repeatedly without touching the
// raw samples again. When the estimator's bias estimate moves a small amount,
// Evaluate applies a first-order Jacobian correction; when it moves far,
// Repropagate replays the buffered samples from scratch under the new biases.
// The Jacobian correction is a linear approximation and is only valid for
// small bias deltas — callers with large bias drift must Repropagate instead.
//
// Gravity is never subtracted during propagation. The increment integrates the
// raw bias-corrected specific force, and the configured gravity vector enters
// only in Evaluate's residual, which compares the increment against a pair of
// world-frame endpoint states.
//
// A Preintegrated is not safe for concurrent use; each instance belongs to
// whichever goroutine is accumulating the interval it covers.
package preintegration
