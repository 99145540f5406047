// Package jobject provides typed handles over common JDK classes. Each type
// embeds *jni.Object, so Close and Clone manage the underlying reference.
package jobject
