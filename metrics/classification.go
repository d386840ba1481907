package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
)

// logEps は確率が0に潰れた場合に対数が発散しないようにする下駄
const logEps = 1e-8

// LogLoss は交差エントロピー損失を計算する。
// yTrueはone-hot（またはソフト）ラベル、yPredはクラス確率の行列
func LogLoss(yTrue, yPred mat.Matrix) (float64, error) {
	// 入力検証
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("LogLoss", "empty matrix")
	}

	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("LogLoss", rTrue, rPred, 0)
	}

	var sum float64
	for i := 0; i < rTrue; i++ {
		for j := 0; j < cTrue; j++ {
			sum -= yTrue.At(i, j) * math.Log(yPred.At(i, j)+logEps)
		}
	}

	return sum / float64(rTrue), nil
}

// Accuracy は argmax 予測に基づく正解率を計算する
func Accuracy(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("Accuracy", "empty matrix")
	}

	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("Accuracy", rTrue, rPred, 0)
	}

	correct := 0
	for i := 0; i < rTrue; i++ {
		if argmaxRow(yTrue, i, cTrue) == argmaxRow(yPred, i, cTrue) {
			correct++
		}
	}

	return float64(correct) / float64(rTrue), nil
}

func argmaxRow(m mat.Matrix, row, cols int) int {
	best := 0
	bestVal := math.Inf(-1)
	for j := 0; j < cols; j++ {
		if v := m.At(row, j); v > bestVal {
			bestVal = v
			best = j
		}
	}
	return best
}
