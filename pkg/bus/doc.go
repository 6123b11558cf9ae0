/*
Package bus implements the in-process change bus: two typed
publish/subscribe topics, record_changes and derived_facts. Delivery
is at-least-once and FIFO per subscriber; a slow subscriber queues in
memory rather than dropping or blocking other subscribers, since the
Reactor's debounce logic depends on eventually seeing every snapshot.
*/
package bus
