// Package model provides lifecycle state management for trainable components.
package model

import (
	"fmt"
	"sync"
)

// Phase はcriticの学習ライフサイクルを表す
type Phase int

const (
	// Uninitialized は学習開始前の状態
	Uninitialized Phase = iota
	// Training は学習ループ実行中の状態
	Training
	// Frozen は学習が終了しパラメータが固定された状態。
	// エポック上限到達とearly stoppingのどちらで終了してもFrozenになる
	Frozen
)

// String はPhaseの文字列表現を返す
func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Training:
		return "training"
	case Frozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// StateManager はcriticの学習状態をスレッドセーフに管理する。
// 継承の代わりにコンポジションで各説明器に埋め込んで使用する。
type StateManager struct {
	mu    sync.RWMutex
	phase Phase

	// 学習時に観測したデータ形状
	NFeatures int
	NSamples  int
}

// NewStateManager は新しいStateManagerを作成する
func NewStateManager() *StateManager {
	return &StateManager{phase: Uninitialized}
}

// Phase は現在のフェーズを返す
func (s *StateManager) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// BeginTraining はUninitializedからTrainingへ遷移する。
// それ以外の状態からの呼び出しはエラーを返す
func (s *StateManager) BeginTraining() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Uninitialized {
		return fmt.Errorf("cannot begin training from phase %q", s.phase)
	}
	s.phase = Training
	return nil
}

// Freeze はTrainingからFrozenへ遷移する
func (s *StateManager) Freeze() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Training {
		return fmt.Errorf("cannot freeze from phase %q", s.phase)
	}
	s.phase = Frozen
	return nil
}

// IsFrozen は学習が完了しているかどうかを返す
func (s *StateManager) IsFrozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == Frozen
}

// RequireFrozen は学習が完了していない場合にエラーを返す
func (s *StateManager) RequireFrozen() error {
	if !s.IsFrozen() {
		return fmt.Errorf("explainer has not finished training yet (phase %q)", s.Phase())
	}
	return nil
}

// SetDimensions は学習時のデータ形状を記録する
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions は学習時のデータ形状を返す
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}
